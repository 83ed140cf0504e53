// Command sqlkit is a thin admin binary wrapping the cli package. Real
// programs typically vendor cli.Run directly with their own
// schema.TableSchema registrations instead of invoking this binary,
// since the set of tables to migrate is a compile-time fact of the
// calling program.
package main

import (
	"github.com/honeynil/sqlkit/cli"
	"github.com/honeynil/sqlkit/schema"
)

func main() {
	cli.Run(func() []*schema.TableSchema {
		return nil
	})
}
