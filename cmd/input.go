package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/chzyer/readline"
)

const inputPrompt = "Enter a query: "

// lineInput reads user queries with line editing and in-memory history.
type lineInput struct {
	rl *readline.Instance
}

func newLineInput(stdin io.ReadCloser, stdout io.Writer) (*lineInput, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          inputPrompt,
		Stdin:           stdin,
		Stdout:          stdout,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &lineInput{rl: rl}, nil
}

// ReadInput returns the next line. Ctrl-C on an empty line ends input.
func (in *lineInput) ReadInput(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := in.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		if line == "" {
			return "", io.EOF
		}
		return "", nil
	}
	return line, err
}

func (in *lineInput) Close() error {
	return in.rl.Close()
}
