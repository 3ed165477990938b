package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Prompter reads one answer per line from in, writing each label to out
// first. After in is exhausted, or once the context passed to Ask is done,
// every Ask reports ok=false.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
	pending chan scanResult
}

type scanResult struct {
	text string
	ok   bool
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Ask returns as soon as ctx is done even while the read is blocked. The
// abandoned read is kept and handed to the next Ask.
func (p *Prompter) Ask(ctx context.Context, label string) (string, bool) {
	fmt.Fprint(p.out, label)
	if ctx.Err() != nil {
		fmt.Fprintln(p.out)
		return "", false
	}
	if p.pending == nil {
		ch := make(chan scanResult, 1)
		go func() {
			ok := p.scanner.Scan()
			ch <- scanResult{text: p.scanner.Text(), ok: ok}
		}()
		p.pending = ch
	}
	select {
	case res := <-p.pending:
		p.pending = nil
		if !res.ok {
			fmt.Fprintln(p.out)
			return "", false
		}
		return strings.TrimSpace(res.text), true
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", false
	}
}

func (p *Prompter) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Prompter) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// AskDecimal parses the answer as a decimal. A blank answer is only
// accepted when optional is set and yields an invalid NullDecimal.
func (p *Prompter) AskDecimal(ctx context.Context, label string, optional bool) (decimal.NullDecimal, bool, error) {
	raw, ok := p.Ask(ctx, label)
	if !ok {
		return decimal.NullDecimal{}, false, nil
	}
	if raw == "" && optional {
		return decimal.NullDecimal{}, true, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, true, fmt.Errorf("invalid number %q", raw)
	}
	return decimal.NewNullDecimal(v), true, nil
}

// Credentials asks for whichever of key and secret is still empty.
func (p *Prompter) Credentials(ctx context.Context, key, secret string) (string, string, bool) {
	var ok bool
	if key == "" {
		if key, ok = p.Ask(ctx, "Enter your API Key: "); !ok {
			return "", "", false
		}
	}
	if secret == "" {
		if secret, ok = p.Ask(ctx, "Enter your API Secret: "); !ok {
			return "", "", false
		}
	}
	return key, secret, true
}
