package main

import (
	"os"

	"github.com/z46-dev/go-logger"

	"github.com/isoforge/isoforge/pkg/commands"
)

var log *logger.Logger = logger.NewLogger().SetPrefix("[ISOFORGE]", logger.BoldPurple)

func main() {
	if len(os.Args) < 3 {
		log.Basicf("usage: isoforge <source iso> <dest iso> [profile.toml]\n")
		os.Exit(1)
	}

	sourceIso := os.Args[1]
	destIsoPath := os.Args[2]

	var (
		profile *commands.Profile
		err     error
	)
	if len(os.Args) > 3 {
		profile, err = commands.LoadProfile(os.Args[3])
		if err != nil {
			log.Errorf("Failed to load profile: %v\n", err)
			os.Exit(1)
		}
	} else {
		profile, err = commands.DefaultProfile()
		if err != nil {
			log.Errorf("Failed to build default profile: %v\n", err)
			os.Exit(1)
		}
	}

	if err := commands.Inject(sourceIso, destIsoPath, profile); err != nil {
		log.Errorf("Injection failed: %v\n", err)
		os.Exit(1)
	}
}
