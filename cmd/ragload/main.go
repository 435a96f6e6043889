// Command ragload loads a source and previews the extracted documents without
// indexing them or calling the model.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/loader"
	"ragchat/internal/logger"
	"ragchat/internal/session"
	"ragchat/internal/textutil"
)

var (
	bold = color.New(color.Bold)
	red  = color.New(color.FgRed)
	dim  = color.New(color.Faint)
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var noColor bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flag.Parse()
	if noColor {
		color.NoColor = true
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		_, _ = red.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, os.Stderr)
	registry := loader.NewRegistry(loader.Config{
		UserAgent:           cfg.Sources.UserAgent,
		TempDir:             cfg.Sources.TempDir,
		WikipediaLang:       cfg.Sources.WikipediaLang,
		TranscriptLanguages: cfg.Sources.TranscriptLanguages,
		Logger:              log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Stdin, os.Stdout, registry); err != nil {
		_, _ = red.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run shows the source menu until the user picks anything other than 1..4.
func run(ctx context.Context, in io.Reader, out io.Writer, l domain.Loader) error {
	sc := bufio.NewScanner(in)
	for {
		_, _ = bold.Fprintln(out, "Select a source:")
		for i, st := range domain.SourceTypes {
			fmt.Fprintf(out, "  %d. %s\n", i+1, st.Label())
		}
		fmt.Fprint(out, "Choice: ")
		if !sc.Scan() {
			fmt.Fprintln(out, "\nExiting.")
			return sc.Err()
		}
		choice := strings.TrimSpace(sc.Text())
		st, err := domain.ParseSourceType(choice)
		if err != nil || len(choice) != 1 {
			fmt.Fprintln(out, "Exiting.")
			return nil
		}

		fmt.Fprintf(out, "Enter the %s: ", st.Prompt())
		if !sc.Scan() {
			fmt.Fprintln(out, "\nExiting.")
			return sc.Err()
		}
		req := domain.LoadRequest{Type: st, Param: strings.TrimSpace(sc.Text())}
		preview(ctx, out, l, req)
		fmt.Fprintln(out)
	}
}

func preview(ctx context.Context, out io.Writer, l domain.Loader, req domain.LoadRequest) {
	docs, err := l.Load(ctx, req)
	if err == nil && len(docs) == 0 {
		err = domain.Errorf(domain.KindEmptySource, req.Type.String()+" source", "no documents for %q", req.Param)
	}
	if err != nil {
		_, _ = red.Fprintln(out, domain.UserMessage(err))
		return
	}
	fmt.Fprintf(out, "Loaded %d documents.\n", len(docs))
	if src := docs[0].Metadata["source"]; src != "" {
		_, _ = dim.Fprintf(out, "source: %s\n", src)
	}
	fmt.Fprintln(out, textutil.Truncate(docs[0].Content, session.PreviewLength))
}
