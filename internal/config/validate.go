package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NerdMeNot/tablejoin"
	"github.com/NerdMeNot/tablejoin/internal/logging"
)

var validFormats = map[string]bool{"table": true, "csv": true, "json": true, "markdown": true}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: want text or json", c.LogFormat)
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format %q: want table, csv, json or markdown", c.Format)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative, got %d", c.MaxRows)
	}
	if c.Parallel.MinRows < 0 {
		return fmt.Errorf("parallel.min_rows must not be negative, got %d", c.Parallel.MinRows)
	}
	return nil
}

// ValidateJoin checks the settings the join command needs on top of Validate.
func (c *Config) ValidateJoin() error {
	var errs []error
	if c.Left == "" {
		errs = append(errs, errors.New("left input is required (--left)"))
	}
	if c.Right == "" {
		errs = append(errs, errors.New("right input is required (--right)"))
	}
	if _, err := tablejoin.ParseJoinType(c.How); err != nil {
		errs = append(errs, err)
	}
	left, right := c.KeyColumns()
	switch {
	case len(left) == 0 && len(right) == 0:
		errs = append(errs, errors.New("join keys are required (--on or --left-on/--right-on)"))
	case len(left) != len(right):
		errs = append(errs, fmt.Errorf("left_on has %d keys but right_on has %d", len(left), len(right)))
	}
	return errors.Join(errs...)
}
