package shell

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DryRun prints the commands it would dispatch instead of running them.
// Every command succeeds.
type DryRun struct {
	Out io.Writer
}

// Execute writes "+ <command>" to Out and returns nil.
func (d *DryRun) Execute(ctx context.Context, tokens []string, _ time.Duration, observe LineObserver) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := "+ " + Command(tokens)
	if observe != nil {
		observe(line)
		return nil
	}
	if d.Out != nil {
		fmt.Fprintln(d.Out, line)
	}
	return nil
}
