// ABOUTME: Interactive config writer for coven-feeds
// ABOUTME: Prompts for Matrix credentials and a first feed, then writes TOML

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/2389/coven-feeds/internal/config"
)

// initAnswers are the values gathered by the init prompts.
type initAnswers struct {
	Homeserver  string
	Username    string
	Password    string
	RecoveryKey string
	OwnerRoom   string
	FeedURL     string
	ChatID      string
	Interval    string
	LogLevel    string
}

func runInit(c *cli.Context) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println("    Interactive Setup")
	fmt.Println("    -----------------")
	fmt.Println()

	configPath := c.String("config")
	reader := bufio.NewReader(os.Stdin)

	if _, err := os.Stat(configPath); err == nil {
		yellow.Printf("    Config already exists at %s\n", configPath)
		if !isYes(prompt(os.Stdout, reader, "Overwrite?", "no")) {
			fmt.Println("    Aborted.")
			return nil
		}
		fmt.Println()
	}

	answers := askInit(os.Stdout, reader)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the Matrix password
	if err := os.WriteFile(configPath, []byte(renderInitConfig(answers)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Next steps:")
	fmt.Println("    1. Check the feeds: coven-feeds once --dry-run")
	fmt.Println("    2. Start relaying:  coven-feeds run")
	fmt.Println()
	return nil
}

func askInit(w io.Writer, reader *bufio.Reader) initAnswers {
	return initAnswers{
		Homeserver:  prompt(w, reader, "Matrix homeserver URL", "https://matrix.org"),
		Username:    prompt(w, reader, "Matrix username", ""),
		Password:    prompt(w, reader, "Matrix password", ""),
		RecoveryKey: prompt(w, reader, "Matrix recovery key (optional, for E2EE)", ""),
		OwnerRoom:   prompt(w, reader, "Room for operator notices (optional)", ""),
		FeedURL:     prompt(w, reader, "First feed URL", ""),
		ChatID:      prompt(w, reader, "Room to post it to", ""),
		Interval:    prompt(w, reader, "Poll interval", config.DefaultInterval.String()),
		LogLevel:    prompt(w, reader, "Log level (debug/info/warn/error)", "info"),
	}
}

func renderInitConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# coven-feeds configuration\n")
	b.WriteString("# Generated by coven-feeds init\n\n")

	b.WriteString("[general]\n")
	if a.OwnerRoom != "" {
		fmt.Fprintf(&b, "owner_id = %s\n", strconv.Quote(a.OwnerRoom))
	}
	fmt.Fprintf(&b, "interval = %s\n", strconv.Quote(a.Interval))
	b.WriteString("\n")

	b.WriteString("[matrix]\n")
	fmt.Fprintf(&b, "homeserver = %s\n", strconv.Quote(a.Homeserver))
	fmt.Fprintf(&b, "username = %s\n", strconv.Quote(a.Username))
	fmt.Fprintf(&b, "password = %s\n", strconv.Quote(a.Password))
	if a.RecoveryKey != "" {
		fmt.Fprintf(&b, "recovery_key = %s\n", strconv.Quote(a.RecoveryKey))
	}
	b.WriteString("\n")

	b.WriteString("[storage]\n")
	fmt.Fprintf(&b, "backend = %s\n", strconv.Quote(config.BackendFile))
	fmt.Fprintf(&b, "path = %s\n", strconv.Quote(config.DefaultStoragePath))
	b.WriteString("\n")

	b.WriteString("[logging]\n")
	fmt.Fprintf(&b, "level = %s\n", strconv.Quote(a.LogLevel))
	b.WriteString("\n")

	b.WriteString("[metrics]\n")
	b.WriteString("enabled = false\n")
	b.WriteString("\n")

	if a.FeedURL != "" {
		b.WriteString("[[feeds]]\n")
		fmt.Fprintf(&b, "url = %s\n", strconv.Quote(a.FeedURL))
		fmt.Fprintf(&b, "chat_id = %s\n", strconv.Quote(a.ChatID))
		b.WriteString("# post_format = \"$title\\n\\n$url\"\n")
		fmt.Fprintf(&b, "# url_cache_size = %d\n", config.DefaultURLCacheSize)
	}

	return b.String()
}

func prompt(w io.Writer, reader *bufio.Reader, question, defaultVal string) string {
	color.New(color.FgGreen).Fprint(w, "    ▶ ")
	if defaultVal != "" {
		fmt.Fprintf(w, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(w, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		fmt.Fprintln(w)
		return defaultVal
	}
	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
