package cli

import "github.com/spf13/pflag"

// Flags is the subset of *pflag.FlagSet that ClientConfig registers on.
type Flags interface {
	StringVarP(p *string, name, shorthand string, value string, usage string)
	IntVarP(p *int, name, shorthand string, value int, usage string)
	BoolVarP(p *bool, name, shorthand string, value bool, usage string)
}

var _ Flags = (*pflag.FlagSet)(nil)
