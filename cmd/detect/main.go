package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"detection-bot/cmd"
	"detection-bot/internal/chat"
	"detection-bot/internal/config"
	"detection-bot/internal/core/utils"
	"detection-bot/internal/inference"
	"detection-bot/internal/naming"
	"detection-bot/internal/pipeline"

	"github.com/schollz/progressbar/v3"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true}

// localMessenger feeds local files into the pipeline in place of the chat
// platform. The file id is the source path and replies are collected per
// chat id.
type localMessenger struct {
	mu      sync.Mutex
	replies map[int64]string
}

func (m *localMessenger) DownloadFile(ctx context.Context, fileId, dir string) (string, error) {
	src, err := os.Open(fileId)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(fileId))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return dst.Name(), nil
}

func (m *localMessenger) SendMessage(ctx context.Context, chatId int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[chatId] = text
	return nil
}

func (m *localMessenger) reply(chatId int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.replies[chatId]
	return text, ok
}

func collectImages(args []string) ([]string, error) {
	var images []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			images = append(images, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				images = append(images, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return images, nil
}

type job struct {
	id   int64
	path string
}

func main() {
	os.Exit(run())
}

func run() int {
	workers := flag.Int("workers", 4, "number of photos processed concurrently")
	stagingDir := flag.String("staging", "", "directory photos are copied and renamed into (default: a temporary directory)")
	cmd.LoadEnvFile()
	cmd.SetupLogging()

	cfg, err := config.Parse[config.DetectConfig]()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	images, err := collectImages(flag.Args())
	if err != nil {
		log.Fatalf("error collecting images: %v", err)
	}
	if len(images) == 0 {
		log.Fatalf("usage: detect [-env file] [-workers n] [-staging dir] <image or directory>...")
	}

	if *stagingDir == "" {
		dir, err := os.MkdirTemp("", "detect-staging-")
		if err != nil {
			log.Fatalf("could not create staging dir: %v", err)
		}
		defer os.RemoveAll(dir)
		*stagingDir = dir
	} else if err := os.MkdirAll(*stagingDir, os.ModePerm); err != nil {
		log.Fatalf("could not create staging dir: %v", err)
	}

	namer, err := naming.NewNamer(naming.Strategy(cfg.NamingStrategy))
	if err != nil {
		log.Fatalf("invalid naming strategy: %v", err)
	}

	ctx := context.Background()
	stager, err := cfg.NewStager(ctx)
	if err != nil {
		log.Fatalf("could not create storage: %v", err)
	}

	messenger := &localMessenger{replies: make(map[int64]string)}
	detector := inference.NewClient(cfg.InferenceURL, cfg.InferenceTimeout)
	photos := pipeline.New(messenger, namer, stager, detector, *stagingDir)

	slog.Info("detecting objects", "images", len(images), "workers", *workers)

	queue := make(chan job, len(images))
	for i, path := range images {
		queue <- job{id: int64(i), path: path}
	}
	close(queue)

	completed := make(chan utils.CompletedTask[job, pipeline.Outcome], len(images))

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("detecting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	utils.RunInPool(func(j job) (pipeline.Outcome, error) {
		out := photos.Run(ctx, chat.Message{
			Chat:  chat.Chat{Id: j.id},
			Photo: []chat.PhotoSize{{FileId: j.path}},
		})
		if out.Final != pipeline.Delivered {
			return out, fmt.Errorf("%s failed: %w", out.Stage, out.Err)
		}
		return out, nil
	}, queue, completed, *workers)

	results := make([]utils.CompletedTask[job, pipeline.Outcome], len(images))
	failed := 0
	for task := range completed {
		results[task.Input.id] = task
		if task.Error != nil {
			failed++
		}
		_ = bar.Add(1)
	}

	for _, task := range results {
		if task.Error != nil {
			fmt.Printf("%s: error: %v\n\n", task.Input.path, task.Error)
			continue
		}
		text, _ := messenger.reply(task.Input.id)
		fmt.Printf("%s (%s):\n%s\n\n", task.Input.path, task.Result.Image.RemoteKey, text)
	}

	if failed > 0 {
		slog.Error("some photos could not be processed", "failed", failed, "total", len(images))
		return 1
	}
	return 0
}
