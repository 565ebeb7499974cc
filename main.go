package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"coda/cmd"
	"coda/config"
	"coda/ffmpeg"
	"coda/services"
	"coda/types"

	"github.com/schollz/progressbar/v3"
)

func main() {
	var (
		server    bool
		port      int
		outputDir string
		normalize bool
		format    string
		watchDir  string
	)

	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8080, "Port for web server mode")
	flag.StringVar(&outputDir, "out", "", "Output directory for converted audio")
	flag.BoolVar(&normalize, "normalize", false, "Apply loudness normalization")
	flag.StringVar(&format, "format", config.DefaultFormat, "Output audio format")
	flag.StringVar(&watchDir, "watch", "", "Watch a directory and convert new files as they appear")
	flag.Parse()

	// Server mode takes precedence
	if server {
		cmd.StartWebServer(port)
		return
	}

	if outputDir == "" {
		outputDir = config.GetOutputLocation()
	}

	runner := ffmpeg.NewRunner()
	converter := services.NewConverter(runner, config.GetFFmpegPath())

	if watchDir != "" {
		watchAndConvert(converter, watchDir, outputDir, normalize, format)
		return
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		flag.Usage()
		return
	}

	os.Exit(convertBatch(converter, inputs, outputDir, normalize, format))
}

// convertBatch converts the inputs with a terminal progress bar and returns
// the process exit code: 0 when every job completed
func convertBatch(converter services.Converter, inputs []string, outputDir string, normalize bool, format string) int {
	jobs := services.NewBatchJobs(inputs, outputDir, normalize, format)
	batch := services.NewBatchConverter(converter)

	// Ctrl-C kills every live subprocess rather than orphaning them. The
	// registration is released when the batch concludes so repeated calls
	// (watch mode converts one batch per detected file) don't accumulate.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	batchDone := make(chan struct{})
	go func() {
		select {
		case <-interrupts:
			fmt.Fprintln(os.Stderr, "\nCancelling...")
			batch.CancelAll()
		case <-batchDone:
		}
	}()
	defer func() {
		signal.Stop(interrupts)
		close(batchDone)
	}()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
	)

	failed := 0
	batch.Run(jobs, func(update services.BatchUpdate) {
		bar.Set(int(update.Overall))

		switch update.Event.Kind {
		case types.EventFinished:
			bar.Clear()
			log.Printf("Converted %s -> %s (%.1fs)",
				filepath.Base(update.Job.InputPath), update.Event.OutputPath, update.Event.Elapsed)
		case types.EventError:
			failed++
			bar.Clear()
			log.Printf("Error converting %s: %s",
				filepath.Base(update.Job.InputPath), update.Event.Message)
		case types.EventCancelled:
			failed++
			bar.Clear()
			log.Printf("Cancelled %s", filepath.Base(update.Job.InputPath))
		}
	})
	bar.Finish()
	fmt.Println()

	if failed > 0 {
		log.Printf("%d of %d conversions did not complete", failed, len(jobs))
		return 1
	}
	return 0
}

// watchAndConvert converts every convertible file that appears in watchDir
// until interrupted. Files are converted one at a time in arrival order.
func watchAndConvert(converter services.Converter, watchDir, outputDir string, normalize bool, format string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupts
		cancel()
	}()

	watcher := services.NewWatcher(func(path string) {
		convertBatch(converter, []string{path}, outputDir, normalize, format)
	})

	if err := watcher.Watch(ctx, watchDir); err != nil && err != context.Canceled {
		log.Fatalf("Watch failed: %v", err)
	}
}
