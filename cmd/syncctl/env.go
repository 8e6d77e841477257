package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/app"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/config"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/database"
)

// openApp loads configuration and connects to the database.
// The returned func closes the connection.
func openApp() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	dbConfig, err := database.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load database configuration: %w", err)
	}
	manager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	closeFn := func() { _ = manager.Close() }
	return app.New(cfg, manager.DB(), app.Options{}), closeFn, nil
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
