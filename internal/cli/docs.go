package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/access"
	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/live"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// queryFlags are the query refinements shared by list and watch.
type queryFlags struct {
	group   bool
	where   []string
	orderBy []string
	limit   int
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&q.group, "group", false, "treat the argument as a collection group name")
	cmd.Flags().StringArrayVar(&q.where, "where", nil, `filter "field op value"; op is one of == != < <= > >= in array-contains`)
	cmd.Flags().StringArrayVar(&q.orderBy, "order-by", nil, "order by field, optionally field:desc")
	cmd.Flags().IntVar(&q.limit, "limit", 0, "maximum number of documents")
}

func (q *queryFlags) set() bool {
	return q.group || len(q.where) > 0 || len(q.orderBy) > 0 || q.limit > 0
}

// locator builds a query locator over path.
func (q *queryFlags) locator(path string) (types.Locator, error) {
	var (
		loc types.Locator
		err error
	)
	if q.group {
		loc, err = types.CollectionGroup(path)
	} else {
		loc, err = types.Collection(path)
	}
	if err != nil {
		return types.Locator{}, err
	}
	for _, w := range q.where {
		field, op, value, err := parseWhere(w)
		if err != nil {
			return types.Locator{}, err
		}
		if loc, err = loc.Where(field, op, value); err != nil {
			return types.Locator{}, err
		}
	}
	for _, o := range q.orderBy {
		field, dir, _ := strings.Cut(o, ":")
		if loc, err = loc.OrderBy(field, dir); err != nil {
			return types.Locator{}, err
		}
	}
	if q.limit > 0 {
		return loc.Limit(q.limit)
	}
	return loc, nil
}

// parseWhere splits "field op value". The value is decoded as JSON when it
// parses, so `in` takes an array and numbers compare as numbers.
func parseWhere(s string) (field, op string, value any, err error) {
	field, rest, ok := strings.Cut(strings.TrimSpace(s), " ")
	if ok {
		var raw string
		op, raw, ok = strings.Cut(strings.TrimSpace(rest), " ")
		value = parseValue(strings.TrimSpace(raw))
	}
	if !ok || field == "" || op == "" {
		return "", "", nil, fmt.Errorf("invalid filter %q (expected \"field op value\")", s)
	}
	return field, op, value, nil
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <doc-path>",
		Short: "Get a document",
		Long: `Get prints the document at the given path. A missing document prints
with "exists": false. During a demo session the cached demo copy is read.

Example:
  listings get agents/u1
  listings get agents/u1/properties/p1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := types.Doc(args[0])
			if err != nil {
				return userError(err)
			}
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.close()

			d := live.NewDoc[json.RawMessage](s.backend, s.demo)
			defer d.Close()
			d.Bind(&loc)
			st, err := d.Wait(cmd.Context(), live.DocState[json.RawMessage].Settled)
			if err != nil {
				return sysError(err)
			}
			if st.Err != nil {
				return accessFailure(st.Err)
			}
			return a.printJSON(docOutput(loc, st))
		},
	}
}

func docOutput(loc types.Locator, st live.DocState[json.RawMessage]) types.DocSnapshot {
	if st.Data == nil {
		return types.Missing(loc)
	}
	return types.DocSnapshot{Exists: true, ID: st.ID, Path: loc.Path(), Data: *st.Data}
}

func queryOutput(st live.QueryState[json.RawMessage]) []types.Document {
	docs := make([]types.Document, 0, len(st.Data))
	for _, e := range st.Data {
		docs = append(docs, types.Document{ID: e.ID, Path: e.Path, Data: e.Value})
	}
	return docs
}

func newListCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "list <collection-path>",
		Short: "List the documents of a collection",
		Long: `List evaluates a query over a collection and prints the matching
documents in query order. Filters are ANDed together. An empty result
prints [].

Example:
  listings list agents/u1/properties
  listings list agents/u1/properties --where "status == active" --order-by createdAt:desc
  listings list properties --group --where 'status in ["active","reserved"]' --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := q.locator(args[0])
			if err != nil {
				return userError(err)
			}
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.close()

			lq := live.NewQuery[json.RawMessage](s.backend, s.demo)
			defer lq.Close()
			lq.Bind(&loc)
			st, err := lq.Wait(cmd.Context(), live.QueryState[json.RawMessage].Settled)
			if err != nil {
				return sysError(err)
			}
			if st.Err != nil {
				return accessFailure(st.Err)
			}
			return a.printJSON(queryOutput(st))
		},
	}
	q.register(cmd)
	return cmd
}

// subscription is the part of live.Doc and live.Query that watch drives.
type subscription interface {
	Changed() <-chan struct{}
	Close()
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		q     queryFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Print a document or query result every time it changes",
		Long: `Watch subscribes to a document (even number of path segments) or a
collection query and prints the current value, then again after every
change, one JSON value per line when piped. It stops on interrupt, on a
listener error, or after --count values.

Example:
  listings watch agents/u1
  listings watch agents/u1/leads --where "status == new"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				loc types.Locator
				err error
			)
			if isDocPath(args[0]) && !q.set() {
				loc, err = types.Doc(args[0])
			} else {
				loc, err = q.locator(args[0])
			}
			if err != nil {
				return userError(err)
			}
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				sub     subscription
				current func() (any, *types.AccessError, bool)
			)
			if loc.IsDoc() {
				d := live.NewDoc[json.RawMessage](s.backend, s.demo)
				d.Bind(&loc)
				sub = d
				current = func() (any, *types.AccessError, bool) {
					st := d.State()
					return docOutput(loc, st), st.Err, st.Settled()
				}
			} else {
				lq := live.NewQuery[json.RawMessage](s.backend, s.demo)
				lq.Bind(&loc)
				sub = lq
				current = func() (any, *types.AccessError, bool) {
					st := lq.State()
					return queryOutput(st), st.Err, st.Settled()
				}
			}
			defer sub.Close()
			return a.follow(ctx, sub, current, count)
		},
	}
	q.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "exit after printing this many values")
	return cmd
}

// follow prints the subscription's value whenever it settles on something
// new, until ctx ends, an error arrives or count values were printed.
func (a *app) follow(ctx context.Context, sub subscription, current func() (any, *types.AccessError, bool), count int) error {
	var (
		last    []byte
		printed int
	)
	for {
		changed := sub.Changed()
		v, ae, settled := current()
		if ae != nil {
			return accessFailure(ae)
		}
		if settled {
			b, err := json.Marshal(v)
			if err != nil {
				return sysError(fmt.Errorf("marshal output: %w", err))
			}
			if !bytes.Equal(b, last) {
				last = b
				if err := a.printJSON(v); err != nil {
					return err
				}
				printed++
				if count > 0 && printed >= count {
					return nil
				}
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil
		}
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <doc-path> <json|->",
		Short: "Create or overwrite a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := types.Doc(args[0])
			if err != nil {
				return userError(err)
			}
			data, err := readPayload(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.write(cmd, func(ctx context.Context, w *access.Writer) error {
				return w.Set(ctx, loc, json.RawMessage(data))
			})
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <collection-path> <json|->",
		Short: "Add a document to a collection under a new ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := types.Collection(args[0])
			if err != nil {
				return userError(err)
			}
			data, err := readPayload(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			var id string
			err = a.write(cmd, func(ctx context.Context, w *access.Writer) error {
				var err error
				id, err = w.Create(ctx, loc, json.RawMessage(data))
				return err
			})
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{"id": id, "path": loc.Path() + "/" + id})
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <doc-path> <json-object|->",
		Short: "Merge fields into an existing document",
		Long: `Update replaces the given top-level fields of an existing document and
leaves the others untouched. A missing document is an error.

Example:
  listings update agents/u1/properties/p1 '{"status":"sold"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := types.Doc(args[0])
			if err != nil {
				return userError(err)
			}
			data, err := readPayload(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
				return userError(fmt.Errorf("%w: fields must be a JSON object", types.ErrInvalidData))
			}
			return a.write(cmd, func(ctx context.Context, w *access.Writer) error {
				return w.Update(ctx, loc, fields)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-path>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := types.Doc(args[0])
			if err != nil {
				return userError(err)
			}
			return a.write(cmd, func(ctx context.Context, w *access.Writer) error {
				return w.Delete(ctx, loc)
			})
		},
	}
}

// write runs fn against a demo-aware writer. During a demo session nothing
// reaches the backend and a note says so on stderr.
func (a *app) write(cmd *cobra.Command, fn func(context.Context, *access.Writer) error) error {
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer s.close()

	if err := fn(cmd.Context(), access.NewWriter(s.backend, s.demo)); err != nil {
		return accessFailure(err)
	}
	if s.demo.IsDemo() {
		fmt.Fprintln(cmd.ErrOrStderr(), "demo session "+strconv.Quote(s.demo.Session())+" active: write not persisted")
	}
	return nil
}
