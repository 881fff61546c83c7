package main

import (
	"fmt"

	"github.com/alkime/callboard/internal/keyring"
)

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetToken    SetTokenCmd    `cmd:"" name:"set-token" help:"Store the API token in the system keychain"`
	DeleteToken DeleteTokenCmd `cmd:"" name:"delete-token" help:"Remove the API token from the system keychain"`
	Show        ShowCmd        `cmd:"" help:"Show the effective configuration"`
}

// SetTokenCmd stores the API token in the system keychain.
type SetTokenCmd struct {
	Token string `arg:"" help:"API token value"`
}

// Run executes the set-token command.
func (c *SetTokenCmd) Run() error {
	if err := keyring.SetToken(c.Token); err != nil {
		return err
	}

	fmt.Println("API token stored in keychain")

	return nil
}

// DeleteTokenCmd removes the API token from the system keychain.
type DeleteTokenCmd struct{}

// Run executes the delete-token command.
func (c *DeleteTokenCmd) Run() error {
	if err := keyring.DeleteToken(); err != nil {
		return err
	}

	fmt.Println("API token removed from keychain")

	return nil
}

// ShowCmd prints the effective configuration without secrets.
type ShowCmd struct{}

// Run executes the show command.
func (c *ShowCmd) Run() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	token := "not set"
	switch {
	case cfg.APIToken != "":
		token = "configured (API_TOKEN)"
	case keyring.HasToken():
		token = "configured (keychain)"
	}

	fmt.Printf("API base URL:     %s\n", cfg.APIBaseURL)
	fmt.Printf("API token:        %s\n", token)
	fmt.Printf("HTTP timeout:     %s\n", cfg.HTTPTimeout)
	fmt.Printf("Poll interval:    %s\n", cfg.PollInterval)
	fmt.Printf("Poll concurrency: %d\n", cfg.PollConcurrency)
	fmt.Printf("Upload timeout:   %s\n", cfg.UploadTimeout)
	fmt.Printf("Max audio bytes:  %d\n", cfg.MaxAudioBytes)
	fmt.Printf("Playback tick:    %s\n", cfg.PlaybackTick)
	fmt.Printf("Log level:        %s\n", cfg.LogLevel)

	if token == "not set" {
		fmt.Println("\nRun 'callboard config set-token <token>' to configure.")
	}

	return nil
}
