package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// FFPlayPlayer plays reply audio through ffplay for the terminal shell.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

// Play blocks until playback ends. Data URIs are decoded and piped to stdin;
// anything else is handed to ffplay as an input URL.
func (p *FFPlayPlayer) Play(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return errors.New("empty audio source")
	}

	args := []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	var stdin []byte
	if IsDataURL(source) {
		decoded, err := ParseDataURL(source)
		if err != nil {
			return err
		}
		stdin = decoded.Data
		args = append(args, "-i", "pipe:0")
	} else {
		args = append(args, "-i", source)
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if output := trimOutput(stderr.String()); output != "" {
			return fmt.Errorf("%s failed: %w: %s", p.command, err, output)
		}
		return fmt.Errorf("%s failed: %w", p.command, err)
	}
	return nil
}
