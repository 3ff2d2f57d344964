package bot

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type ResponseKind string

const (
	Greeting    ResponseKind = "greetings"
	WellBeing   ResponseKind = "well_being"
	Thanks      ResponseKind = "thanks"
	Help        ResponseKind = "help"
	PredictInfo ResponseKind = "predict_info"
	NoCaption   ResponseKind = "no_caption"
	Default     ResponseKind = "default"
)

// Responder returns the canned reply for a kind of message.
type Responder interface {
	Respond(kind ResponseKind) string
}

type PhotoErrors struct {
	NoCaption []string `yaml:"no_caption"`
}

// Responses is the canned reply table. Every kind except help is answered
// with one entry picked at random; help is answered with all entries joined
// by newlines.
type Responses struct {
	Greetings   []string    `yaml:"greetings"`
	WellBeing   []string    `yaml:"well_being"`
	Thanks      []string    `yaml:"thanks"`
	Help        []string    `yaml:"help"`
	PredictInfo string      `yaml:"predict_info"`
	Default     []string    `yaml:"default"`
	PhotoErrors PhotoErrors `yaml:"photo_errors"`

	pick func(n int) int
}

func DefaultResponses() *Responses {
	return &Responses{
		Greetings: []string{"Hello! Send me a photo with the caption 'predict' and I will tell you what is in it."},
		WellBeing: []string{"I'm doing great, thanks for asking! Ready to look at some photos."},
		Thanks:    []string{"You're welcome!"},
		Help: []string{
			"Send a photo with the caption 'predict' to detect objects in it.",
			"I will reply with the list of detected objects and how many of each I found.",
		},
		PredictInfo: "Predict runs object detection on your photo and counts the objects it finds.",
		Default:     []string{"I'm not sure what you mean. Type 'help' to see what I can do."},
		PhotoErrors: PhotoErrors{
			NoCaption: []string{"Please add a caption to your photo, for example 'predict'."},
		},
	}
}

// LoadResponses reads the reply table from a YAML file. Kinds missing from the
// file keep their built-in defaults.
func LoadResponses(path string) (*Responses, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading responses file: %w", err)
	}

	var loaded Responses
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("error parsing responses file: %w", err)
	}

	r := DefaultResponses()
	merge(&r.Greetings, loaded.Greetings)
	merge(&r.WellBeing, loaded.WellBeing)
	merge(&r.Thanks, loaded.Thanks)
	merge(&r.Help, loaded.Help)
	merge(&r.Default, loaded.Default)
	merge(&r.PhotoErrors.NoCaption, loaded.PhotoErrors.NoCaption)
	if loaded.PredictInfo != "" {
		r.PredictInfo = loaded.PredictInfo
	}

	return r, nil
}

func merge(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

// WithPicker replaces the random choice, mostly for tests.
func (r *Responses) WithPicker(pick func(n int) int) *Responses {
	r.pick = pick
	return r
}

func (r *Responses) choose(options []string) string {
	if len(options) == 0 {
		return ""
	}
	pick := r.pick
	if pick == nil {
		pick = rand.IntN
	}
	return options[pick(len(options))]
}

func (r *Responses) Respond(kind ResponseKind) string {
	switch kind {
	case Greeting:
		return r.choose(r.Greetings)
	case WellBeing:
		return r.choose(r.WellBeing)
	case Thanks:
		return r.choose(r.Thanks)
	case Help:
		return strings.Join(r.Help, "\n")
	case PredictInfo:
		return r.PredictInfo
	case NoCaption:
		return r.choose(r.PhotoErrors.NoCaption)
	default:
		return r.choose(r.Default)
	}
}
