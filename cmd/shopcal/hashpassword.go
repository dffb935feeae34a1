package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"shopcal/internal/auth"
	"shopcal/internal/config"
)

// runHashPassword handles the hash-password subcommand. It prints an
// argon2id hash, or with --config stores it as the basic auth credential.
func runHashPassword(args []string) int {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "Write the hash into this config file instead of printing it")
	username := fs.StringP("username", "u", "", "Basic auth username to store with --config")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shopcal hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Hashes a password (Argon2id) for basic_auth.password_hash.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *configPath != "" && *username == "" {
		fmt.Fprintf(os.Stderr, "--username is required with --config\n")
		return 2
	}

	password, err := readPassword(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return 1
	}
	if password == "" {
		fmt.Fprintf(os.Stderr, "Password cannot be empty\n")
		return 1
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *configPath == "" {
		fmt.Println(hash)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	cfg.BasicAuth = &config.BasicAuthConfig{Username: *username, PasswordHash: hash}
	if err := cfg.Save(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "basic auth stored for %q in %s\n", *username, *configPath)
	return 0
}

// readPassword prompts twice on a terminal with echo off. Piped input is
// read as a single line.
func readPassword(in *os.File) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return readLine(in)
	}

	fmt.Fprint(os.Stderr, "Enter password:   ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
