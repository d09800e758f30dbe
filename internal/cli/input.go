package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/dalfonso89/currency-converter/internal/models"
)

// Request is one conversion asked for on the command line or at the prompt.
type Request struct {
	From   string
	To     string
	Amount float64
}

// ParseCode accepts exactly three uppercase letters, surrounding space ignored.
func ParseCode(input string) (string, error) {
	code := strings.TrimSpace(input)
	if !models.IsCurrencyCode(code) {
		return "", models.NewInvalidInputError(fmt.Sprintf("invalid currency code %q, use three uppercase letters such as USD", code))
	}
	return code, nil
}

// ParseAmount accepts a positive finite number.
func ParseAmount(input string) (float64, error) {
	trimmed := strings.TrimSpace(input)
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return 0, models.NewInvalidInputError(fmt.Sprintf("invalid amount %q, use a positive number", trimmed))
	}
	return amount, nil
}

// ParseArgs builds a Request from FROM TO AMOUNT.
func ParseArgs(args []string) (Request, error) {
	if len(args) != 3 {
		return Request{}, models.NewInvalidInputError("expected FROM TO AMOUNT, for example: USD EUR 10")
	}

	from, err := ParseCode(args[0])
	if err != nil {
		return Request{}, err
	}
	to, err := ParseCode(args[1])
	if err != nil {
		return Request{}, err
	}
	amount, err := ParseAmount(args[2])
	if err != nil {
		return Request{}, err
	}
	return Request{From: from, To: to, Amount: amount}, nil
}

// IsTerminal reports whether file is attached to a terminal.
func IsTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}

// Prompter reads a Request line by line. Prompts are written only when
// showPrompts is set, so piped input produces clean output.
type Prompter struct {
	reader      *bufio.Reader
	out         io.Writer
	showPrompts bool
}

func NewPrompter(in io.Reader, out io.Writer, showPrompts bool) *Prompter {
	return &Prompter{
		reader:      bufio.NewReader(in),
		out:         out,
		showPrompts: showPrompts,
	}
}

// ReadRequest asks for the source code, the target code and the amount.
func (prompter *Prompter) ReadRequest() (Request, error) {
	prompter.say("Welcome to the currency converter tool.\n")

	from, err := prompter.ask("Enter the code of currency that you want to convert from: ", ParseCode)
	if err != nil {
		return Request{}, err
	}
	to, err := prompter.ask("Enter the code of currency that you want to convert to: ", ParseCode)
	if err != nil {
		return Request{}, err
	}

	prompter.say("Enter the amount of money that you want to convert: ")
	line, err := prompter.readLine()
	if err != nil {
		return Request{}, err
	}
	amount, err := ParseAmount(line)
	if err != nil {
		return Request{}, err
	}

	return Request{From: from, To: to, Amount: amount}, nil
}

func (prompter *Prompter) ask(prompt string, parse func(string) (string, error)) (string, error) {
	prompter.say(prompt)
	line, err := prompter.readLine()
	if err != nil {
		return "", err
	}
	return parse(line)
}

func (prompter *Prompter) say(text string) {
	if prompter.showPrompts {
		fmt.Fprint(prompter.out, text)
	}
}

// readLine returns the next line. A final line without a newline is accepted.
func (prompter *Prompter) readLine() (string, error) {
	line, err := prompter.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", models.NewInvalidInputError("input ended before the conversion was complete")
		}
		return "", fmt.Errorf("reading input: %w", err)
	}
	return line, nil
}
