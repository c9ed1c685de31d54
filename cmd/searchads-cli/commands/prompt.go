package commands

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

type line struct {
	text string
	err  error
}

// linePrompt reads its input from a single goroutine. A ReadLine that gives
// up on ctx leaves the next line for the following call.
type linePrompt struct {
	once  sync.Once
	input io.Reader
	lines chan line
}

func newLinePrompt(input io.Reader) *linePrompt {
	return &linePrompt{
		input: input,
		lines: make(chan line),
	}
}

func (p *linePrompt) read() {
	defer close(p.lines)
	reader := bufio.NewReader(p.input)
	for {
		text, err := reader.ReadString('\n')
		if text != "" {
			p.lines <- line{text: strings.TrimSpace(text)}
		}
		if err != nil {
			p.lines <- line{err: err}
			return
		}
	}
}

func (p *linePrompt) ReadLine(ctx context.Context) (string, error) {
	p.once.Do(func() {
		go p.read()
	})

	select {
	case l, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
