package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
)

const storageUsage = "Usage: storage <local|sync|session> [get <key> | clear]"

// Storage inspects a storage area: with only an area it lists the keys,
// "get <key>" prints a raw value and "clear" empties the area.
func (a *App) Storage(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, storageUsage)
		return nil
	}

	area, err := storage.ParseArea(args[0])
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return err
	}
	st, err := a.storage.Area(area)
	if err != nil {
		return err
	}

	switch {
	case len(args) == 1:
		keys, err := st.Keys(ctx)
		if err != nil {
			a.log.Error(ctx, "failed to list storage keys", "area", area, "error", err)
			return err
		}
		if len(keys) == 0 {
			fmt.Fprintf(a.out, "%s: empty\n", area)
		}
		for _, k := range keys {
			fmt.Fprintln(a.out, k)
		}

	case args[1] == "get" && len(args) == 3:
		v, err := st.Get(ctx, args[2])
		if err != nil {
			a.log.Error(ctx, "failed to read storage key", "area", area, "key", args[2], "error", err)
			return err
		}
		if v == nil {
			fmt.Fprintf(a.out, "%s[%s]: not set\n", area, args[2])
			return nil
		}
		fmt.Fprintln(a.out, string(v))

	case args[1] == "clear" && len(args) == 2:
		if err := st.Clear(ctx); err != nil {
			a.log.Error(ctx, "failed to clear storage area", "area", area, "error", err)
			return err
		}
		fmt.Fprintf(a.out, "%s: cleared\n", area)

	default:
		fmt.Fprintln(a.out, storageUsage)
	}
	return nil
}
