package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"

	"github.com/headline-goat/abpower/internal/config"
)

// errNoPreset means the user chose to continue without a preset.
var errNoPreset = errors.New("no preset selected")

const customPreset = "(none, use flags only)"

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func promptPreset(presets *config.Presets) (string, error) {
	names := presets.Names()
	items := make([]string, 0, len(names)+1)
	for _, name := range names {
		label := name
		if d := presets.Presets[name].Description; d != "" {
			label = fmt.Sprintf("%s (%s)", name, d)
		}
		items = append(items, label)
	}
	items = append(items, customPreset)

	prompt := promptui.Select{
		Label: "Select sensitivity preset",
		Items: items,
		Size:  len(items),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	if idx == len(names) {
		return "", errNoPreset
	}
	return names[idx], nil
}
