package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"detection-bot/internal/core/types"
	"detection-bot/pkg/api"

	"gopkg.in/yaml.v2"
)

// ParseLabels reads a label file of "class_index cx cy width height" lines
// and resolves each class index against classes. Blank lines are skipped.
func ParseLabels(r io.Reader, classes []string) ([]types.Detection, error) {
	var detections []types.Detection

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		detection, err := parseLabelLine(line, classes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		detections = append(detections, detection)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels: %w: %w", types.ErrParseFailure, err)
	}

	return detections, nil
}

func parseLabelLine(line string, classes []string) (types.Detection, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return types.Detection{}, fmt.Errorf("%w: expected 5 fields, found %d", types.ErrParseFailure, len(fields))
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return types.Detection{}, fmt.Errorf("%w: invalid class index '%s'", types.ErrParseFailure, fields[0])
	}
	if index < 0 || index >= len(classes) {
		return types.Detection{}, fmt.Errorf("%w: class index %d out of range for %d classes", types.ErrParseFailure, index, len(classes))
	}

	var coords [4]float64
	for i, field := range fields[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return types.Detection{}, fmt.Errorf("%w: invalid coordinate '%s'", types.ErrParseFailure, field)
		}
		coords[i] = v
	}

	detection := types.Detection{
		Class:   classes[index],
		CenterX: coords[0],
		CenterY: coords[1],
		Width:   coords[2],
		Height:  coords[3],
	}
	if err := detection.Validate(); err != nil {
		return types.Detection{}, err
	}

	return detection, nil
}

func DetectionsToLabels(detections []types.Detection) []api.Label {
	labels := make([]api.Label, 0, len(detections))
	for _, d := range detections {
		labels = append(labels, api.Label{Class: d.Class, Cx: d.CenterX, Cy: d.CenterY, Width: d.Width, Height: d.Height})
	}
	return labels
}

func DetectionsFromSummary(summary *api.PredictionSummary) []types.Detection {
	if summary == nil {
		return nil
	}

	detections := make([]types.Detection, 0, len(summary.Labels))
	for _, l := range summary.Labels {
		detections = append(detections, types.Detection{Class: l.Class, CenterX: l.Cx, CenterY: l.Cy, Width: l.Width, Height: l.Height})
	}
	return detections
}

type classTable struct {
	Names interface{} `yaml:"names"`
}

// LoadClasses reads the class names from a dataset YAML file such as
// coco128.yaml. Both the list form and the index keyed map form of "names"
// are accepted.
func LoadClasses(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading class table %s: %w", path, err)
	}

	var table classTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("error parsing class table %s: %w", path, err)
	}

	var names []string
	switch v := table.Names.(type) {
	case []interface{}:
		for _, name := range v {
			names = append(names, fmt.Sprint(name))
		}
	case map[interface{}]interface{}:
		names = make([]string, len(v))
		for key, name := range v {
			index, ok := key.(int)
			if !ok || index < 0 || index >= len(v) {
				return nil, fmt.Errorf("class table %s has invalid class index %v", path, key)
			}
			names[index] = fmt.Sprint(name)
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("class table %s has no names", path)
	}

	return names, nil
}
