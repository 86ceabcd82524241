// Package admincli implements the operator command that grants
// administrator rights.
package admincli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/flagx"
)

// Promoter is satisfied by *services.UserService.
type Promoter interface {
	PromoteAdmin(ctx context.Context, email, password string) (bool, error)
}

// Options are the command's own flags.
type Options struct {
	Email    string
	Password string
}

// ParseOptions reads -email and -password from args, ignoring server flags.
func ParseOptions(args []string) (Options, error) {
	var o Options
	args = flagx.FilterArgs(args, []string{"-email", "--email", "-password", "--password"})

	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.Email, "email", "", "administrator email")
	fs.StringVar(&o.Password, "password", "", "password, used only when the account is created")
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Run promotes o.Email, prompting for whatever is missing. The password is
// asked for only when the account does not exist yet.
func Run(ctx context.Context, o Options, p Promoter, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	if o.Email == "" {
		email, err := GetSimpleText(reader, "Administrator email", out)
		if err != nil {
			return err
		}
		o.Email = email
	}
	o.Email = strings.TrimSpace(o.Email)
	if o.Email == "" {
		return errors.New("email is required")
	}

	created, err := p.PromoteAdmin(ctx, o.Email, o.Password)
	if errors.Is(err, common.ErrorNotFound) && o.Password == "" {
		fmt.Fprintf(out, "No account for %s, a new administrator will be created.\n", o.Email)
		pw, perr := GetPassword(out, "Enter password: ")
		if perr != nil {
			return perr
		}
		if len(pw) < 8 {
			return errors.New("password must be at least 8 characters")
		}
		created, err = p.PromoteAdmin(ctx, o.Email, pw)
	}
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(out, "Administrator %s created\n", o.Email)
	} else {
		fmt.Fprintf(out, "%s is now an administrator\n", o.Email)
	}
	return nil
}
