package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"presstalk/internal/domain"
	"presstalk/internal/ports"
)

func pumpAudioFragments(
	audio ports.AudioSession,
	fragments *fragmentBuffer,
	chunkSize int,
	events ports.EventSink,
	logger *log.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			fragments.Append(buf[:n])
		}
		if err != nil {
			if !isEndOfCapture(err) {
				logger.Warn("audio capture read failed", "error", err, "fragments", fragments.Len())
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func isEndOfCapture(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}
