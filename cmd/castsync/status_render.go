package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"castsync/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusColor(status queue.Status) string {
	switch status {
	case queue.StatusCompleted:
		return ansiGreen
	case queue.StatusFailed:
		return ansiRed
	case queue.StatusDeferred, queue.StatusReview:
		return ansiYellow
	case queue.StatusProcessing:
		return ansiBlue
	default:
		return ""
	}
}

func renderStatus(status queue.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	if color := statusColor(status); color != "" {
		return color + label + ansiReset
	}
	return label
}
