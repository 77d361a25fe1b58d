package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/tmarsden/coffers/internal/grant"
	"github.com/tmarsden/coffers/internal/ledger"
	"github.com/tmarsden/coffers/internal/macro"
)

// Console reads GM commands line by line and dispatches them against the
// ledger engine, offer book, and macro manager.
//
// Console implements the server.Service interface: Start blocks until the
// input stream ends, the quit command is entered, or Stop is called.
type Console struct {
	engine   *ledger.Engine
	registry *ledger.Registry
	book     *grant.Book
	macros   *macro.Manager
	commands *Registry
	logger   *zap.Logger
	in       io.Reader
	out      io.Writer
	closed   atomic.Bool
}

// NewConsole creates a Console over the given input and output streams.
//
// Precondition: engine, registry, in, out, and logger must be non-nil. book
// and macros may be nil; their commands then report as unavailable.
func NewConsole(engine *ledger.Engine, registry *ledger.Registry, book *grant.Book, macros *macro.Manager, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		engine:   engine,
		registry: registry,
		book:     book,
		macros:   macros,
		commands: DefaultRegistry(),
		logger:   logger,
		in:       in,
		out:      out,
	}
}

// Start runs the read loop until EOF, quit, or Stop.
//
// Postcondition: Returns nil on orderly shutdown, or the scanner error.
func (c *Console) Start() error {
	scanner := bufio.NewScanner(c.in)
	c.printf("coffers console ready. Type help for commands.\n")
	c.prompt()
	for scanner.Scan() {
		if c.closed.Load() {
			return nil
		}
		if quit := c.handle(scanner.Text()); quit {
			return nil
		}
		c.prompt()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("console: reading input: %w", err)
	}
	return nil
}

// Stop marks the console closed. The read loop exits before dispatching the
// next line; a console blocked on a read exits when its input stream closes.
func (c *Console) Stop() {
	c.closed.Store(true)
}

// handle dispatches one input line. Returns true when the console should quit.
func (c *Console) handle(line string) bool {
	parsed := Parse(line)
	if parsed.Command == "" {
		return false
	}

	cmd, ok := c.commands.Resolve(parsed.Command)
	if !ok {
		c.printf("unknown command %q. Type help for commands.\n", parsed.Command)
		return false
	}

	ctx := context.Background()
	switch cmd.Name {
	case "pay":
		c.handlePay(ctx, cmd, parsed.Args)
	case "credit":
		c.handleCredit(ctx, cmd, parsed.Args)
	case "balance":
		c.handleBalance(ctx, cmd, parsed.Args)
	case "region":
		c.handleRegion(ctx, parsed.Args)
	case "consolidate":
		c.handleConsolidate(ctx, cmd, parsed.Args)
	case "offer":
		c.handleOffer(cmd, parsed.Args)
	case "offers":
		c.handleOffers()
	case "claim":
		c.handleClaim(ctx, cmd, parsed.Args)
	case "macro":
		c.handleMacro(cmd, parsed.Args)
	case "help":
		c.handleHelp()
	case "quit":
		c.printf("goodbye.\n")
		return true
	}
	return false
}

func (c *Console) handlePay(ctx context.Context, cmd *Command, args []string) {
	if len(args) < 2 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	characterID, err := parseCharacter(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	outcome, err := c.engine.Pay(ctx, characterID, strings.Join(args[1:], " "))
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	c.printf("%s\n", outcome.Summary())
}

func (c *Console) handleCredit(ctx context.Context, cmd *Command, args []string) {
	if len(args) < 2 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	characterID, err := parseCharacter(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	outcome, err := c.engine.Credit(ctx, characterID, strings.Join(args[1:], " "))
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	c.printf("%s\n", outcome.Summary())
}

func (c *Console) handleBalance(ctx context.Context, cmd *Command, args []string) {
	if len(args) != 1 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	characterID, err := parseCharacter(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	grouped, err := c.engine.Balance(ctx, characterID)
	if err != nil {
		c.printf("%v\n", err)
		return
	}

	keys := make([]string, 0, len(grouped.Groups))
	for key := range grouped.Groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		c.printf("no holdings.\n")
		return
	}
	for _, key := range keys {
		group := grouped.Groups[key]
		var parts []string
		for _, h := range group.Holdings {
			parts = append(parts, fmt.Sprintf("%s x%d", h.CoinKey, h.Quantity))
		}
		c.printf("%s: %s (value %d, worth %d in %s)\n",
			key, strings.Join(parts, ", "), group.Total, group.Converted, grouped.Target.Key)
	}
	c.printf("total in %s: %s\n", grouped.Target.Key, ledger.Normalize(grouped.TotalConverted).Format())
}

func (c *Console) handleRegion(ctx context.Context, args []string) {
	if len(args) == 0 {
		current, _ := c.registry.Current()
		for _, region := range c.registry.Regions() {
			marker := ""
			if current != nil && region.Key == current.Key {
				marker = " (current)"
			}
			c.printf("%s: %s%s\n", region.Key, region.Name, marker)
		}
		return
	}
	if len(args) == 2 && args[0] == "set" {
		if err := c.registry.SetCurrent(ctx, args[1]); err != nil {
			c.printf("%v\n", err)
			return
		}
		c.printf("current region is now %s.\n", args[1])
		return
	}
	c.printf("usage: region [set <key>]\n")
}

func (c *Console) handleConsolidate(ctx context.Context, cmd *Command, args []string) {
	if len(args) != 2 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	characterID, err := parseCharacter(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	if err := c.engine.ConsolidateRegion(ctx, characterID, args[1]); err != nil {
		c.printf("%v\n", err)
		return
	}
	c.printf("consolidated %s holdings for character %d.\n", args[1], characterID)
}

func (c *Console) handleOffer(cmd *Command, args []string) {
	if c.book == nil {
		c.printf("offers are not available.\n")
		return
	}
	if len(args) < 2 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	claims, err := strconv.Atoi(args[0])
	if err != nil {
		c.printf("claims must be a number, got %q\n", args[0])
		return
	}
	offer, err := c.book.Publish(strings.Join(args[1:], " "), claims)
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	c.printf("offer %s published: %s, %d claims.\n", offer.ID, offer.Command, offer.Remaining)
}

func (c *Console) handleOffers() {
	if c.book == nil {
		c.printf("offers are not available.\n")
		return
	}
	offers := c.book.Offers()
	if len(offers) == 0 {
		c.printf("no open offers.\n")
		return
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].CreatedAt.Before(offers[j].CreatedAt) })
	for _, offer := range offers {
		c.printf("%s: %s, %d remaining\n", offer.ID, offer.Command, offer.Remaining)
	}
}

func (c *Console) handleClaim(ctx context.Context, cmd *Command, args []string) {
	if c.book == nil {
		c.printf("offers are not available.\n")
		return
	}
	if len(args) != 2 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	characterID, err := parseCharacter(args[1])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	outcome, err := c.book.Claim(ctx, args[0], characterID)
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	c.printf("%s\n", outcome.Summary())
}

func (c *Console) handleMacro(cmd *Command, args []string) {
	if c.macros == nil {
		c.printf("macros are not available.\n")
		return
	}
	if len(args) != 1 {
		c.printf("usage: %s\n", cmd.Usage)
		return
	}
	ret, err := c.macros.Call(args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	if ret == lua.LNil {
		c.printf("macro %q produced no result.\n", args[0])
		return
	}
	c.printf("%s\n", ret.String())
}

func (c *Console) handleHelp() {
	byCategory := c.commands.CommandsByCategory()
	for _, category := range []string{CategoryLedger, CategoryGrant, CategorySystem} {
		cmds := byCategory[category]
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		c.printf("%s:\n", category)
		for _, cmd := range cmds {
			c.printf("  %-32s %s\n", cmd.Usage, cmd.Help)
		}
	}
}

func (c *Console) prompt() {
	c.printf("> ")
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Warn("console: writing output",
			zap.Error(err),
		)
	}
}

func parseCharacter(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("character must be a numeric ID, got %q", arg)
	}
	return id, nil
}
