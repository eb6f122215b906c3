package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/workload"
)

const maxLineBytes = 1 << 20

// readEntries decodes a newline-delimited JSON comment stream and calls submit
// for each entry. Server-sent-event framing ("data: " prefixes, "[DONE]") is
// accepted so a chat relay can be piped in directly. Blank lines and lines
// starting with '#' are skipped; malformed lines are logged and skipped.
// Returns the number of entries submitted.
func readEntries(ctx context.Context, r io.Reader, submit func(workload.Entry)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	count := 0
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		text := strings.TrimSpace(scanner.Text())
		text = strings.TrimPrefix(text, "data: ")
		if text == "" || text == "[DONE]" || strings.HasPrefix(text, "#") {
			continue
		}
		var e workload.Entry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			logrus.Warnf("line %d: skipping malformed item: %v", line, err)
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		submit(e)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading item stream: %w", err)
	}
	return count, nil
}

// displayLogger is a Delegate that logs display lifecycle at debug level and
// renders everything.
type displayLogger struct {
	danmaku.NopDelegate
}

func (displayLogger) PrepareCompleted() {
	logrus.Debugf("engine prepared")
}

func (displayLogger) WillDisplay(_ danmaku.Cell, item *danmaku.Item) {
	logrus.Debugf("display %s", item)
}

func (displayLogger) DidEndDisplay(_ danmaku.Cell, item *danmaku.Item) {
	logrus.Debugf("end display %s", item)
}
