package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"refinery/internal/catalog"
	"refinery/internal/currency"
	"refinery/internal/operative"
	"refinery/internal/revenue"
)

type Service struct {
	db       *pgxpool.Pool
	log      *slog.Logger
	catalog  *catalog.Catalog
	registry *operative.Registry
	resolver *revenue.Resolver

	mu     sync.Mutex
	events map[uuid.UUID]uuid.UUID // global_events.id -> registry handle
}

func NewService(db *pgxpool.Pool, cat *catalog.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:       db,
		log:      logger,
		catalog:  cat,
		registry: operative.NewRegistry(logger),
		resolver: revenue.NewResolver(cat.Softcaps, logger),
		events:   map[uuid.UUID]uuid.UUID{},
	}
	registerFurnaceBoosts(s.registry, cat)
	s.registry.Refresh()
	return s
}

// registerFurnaceBoosts stages the local boosts of every catalog furnace.
func registerFurnaceBoosts(r *operative.Registry, cat *catalog.Catalog) {
	for _, id := range cat.FurnaceIDs() {
		f, _ := cat.Furnace(id)
		for _, b := range f.Boosts {
			r.Register(b)
		}
	}
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }
func (s *Service) Registry() *operative.Registry { return s.registry }
func (s *Service) Resolver() *revenue.Resolver { return s.resolver }
func (s *Service) Boosts() *operative.Snapshot { return s.registry.Snapshot() }

func (s *Service) EnsurePlayer(ctx context.Context, playerID string) error {
	playerID = strings.TrimSpace(playerID)
	if err := ValidatePlayerID(playerID); err != nil {
		return err
	}
	starter, err := encodeBundle(StarterBalance())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO refinery.players (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, playerID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO refinery.wallets (player_id, balance, peak)
		VALUES ($1, $2, $2)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID, starter)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Service) Wallet(ctx context.Context, playerID string) (WalletView, error) {
	out := WalletView{PlayerID: playerID}
	if err := ValidatePlayerID(playerID); err != nil {
		return out, err
	}
	balance, peak, updated, err := loadWallet(ctx, s.db, playerID, false)
	if err != nil {
		return out, err
	}
	levels, err := loadLevels(ctx, s.db, playerID, false)
	if err != nil {
		return out, err
	}
	out.Balance, out.Peak, out.UpdatedAt, out.Upgrades = balance, peak, updated, levels
	return out, nil
}

// PreviewDroplets resolves a batch against the current wallet without
// writing anything. Calling it repeatedly never changes the outcome of a
// later ProcessDroplets.
func (s *Service) PreviewDroplets(ctx context.Context, in DropletInput) (DropletResult, error) {
	out := DropletResult{FurnaceID: in.FurnaceID, Count: in.Count, Preview: true}
	if err := validateDroplets(in); err != nil {
		return out, err
	}
	f, err := s.catalog.Furnace(in.FurnaceID)
	if err != nil {
		return out, err
	}
	balance, peak, _, err := loadWallet(ctx, s.db, in.PlayerID, false)
	if err != nil {
		return out, err
	}
	levels, err := loadLevels(ctx, s.db, in.PlayerID, false)
	if err != nil {
		return out, err
	}
	out.Result = s.resolve(f, in.Count, balance, levels)
	out.Balance = balance.Add(out.Result.Delta)
	out.Peak = peak.Max(out.Balance)
	return out, nil
}

// ProcessDroplets resolves a batch and adds the delta to the player's
// balance in one serializable transaction, raising the high-water mark.
func (s *Service) ProcessDroplets(ctx context.Context, in DropletInput) (DropletResult, error) {
	out := DropletResult{FurnaceID: in.FurnaceID, Count: in.Count}
	if err := validateDroplets(in); err != nil {
		return out, err
	}
	f, err := s.catalog.Furnace(in.FurnaceID)
	if err != nil {
		return out, err
	}

	err = s.serializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.PlayerID, in.IdempotencyKey, "droplets"); err != nil {
			return err
		}
		balance, peak, _, err := loadWallet(ctx, tx, in.PlayerID, true)
		if err != nil {
			return err
		}
		levels, err := loadLevels(ctx, tx, in.PlayerID, false)
		if err != nil {
			return err
		}

		res := s.resolve(f, in.Count, balance, levels)
		balance = balance.Add(res.Delta)
		peak = peak.Max(balance)
		if err := storeWallet(ctx, tx, in.PlayerID, balance, peak); err != nil {
			return err
		}
		if !res.Delta.IsZero() {
			meta := map[string]any{"furnace": f.ID, "count": in.Count, "nerf": res.Nerf.String()}
			if err := appendLedgerEntry(ctx, tx, in.PlayerID, "droplets", res.Delta, meta); err != nil {
				return err
			}
		}
		out.Result, out.Balance, out.Peak = res, balance, peak
		return tx.Commit(ctx)
	})
	if err != nil {
		return out, err
	}
	s.log.Debug("droplets processed",
		"player_id", in.PlayerID,
		"furnace", f.ID,
		"count", in.Count,
		"delta", out.Result.Delta.String(),
		"pass_through", out.Result.PassThrough,
	)
	return out, nil
}

func (s *Service) BuyUpgrade(ctx context.Context, in BuyUpgradeInput) (BuyUpgradeResult, error) {
	out := BuyUpgradeResult{Upgrade: in.Upgrade}
	if err := ValidatePlayerID(in.PlayerID); err != nil {
		return out, err
	}
	u, err := s.catalog.Upgrade(strings.TrimSpace(in.Upgrade))
	if err != nil {
		return out, err
	}

	err = s.serializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.PlayerID, in.IdempotencyKey, "buy_upgrade"); err != nil {
			return err
		}
		balance, peak, _, err := loadWallet(ctx, tx, in.PlayerID, true)
		if err != nil {
			return err
		}
		var level int64
		err = tx.QueryRow(ctx, `
			SELECT level
			FROM refinery.upgrade_levels
			WHERE player_id = $1 AND upgrade = $2
			FOR UPDATE
		`, in.PlayerID, u.Name).Scan(&level)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if u.Maxed(level) {
			return fmt.Errorf("%w: %s is level %d", ErrUpgradeMaxed, u.Name, level)
		}

		cost := u.CostAt(level)
		var remaining currency.Bundle
		if !balance.CanAfford(cost, &remaining) {
			return fmt.Errorf("%w: %s level %d costs %s", ErrInsufficientFunds, u.Name, level+1, cost)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO refinery.upgrade_levels (player_id, upgrade, level)
			VALUES ($1, $2, 1)
			ON CONFLICT (player_id, upgrade) DO UPDATE
			SET level = refinery.upgrade_levels.level + 1, updated_at = now()
		`, in.PlayerID, u.Name); err != nil {
			return err
		}
		if err := storeWallet(ctx, tx, in.PlayerID, remaining, peak); err != nil {
			return err
		}
		var debit currency.Bundle
		debit = debit.Sub(cost)
		if err := appendLedgerEntry(ctx, tx, in.PlayerID, "buy_upgrade", debit, map[string]any{"upgrade": u.Name, "level": level + 1}); err != nil {
			return err
		}
		out.Level, out.Cost, out.Balance = level+1, cost, remaining
		return tx.Commit(ctx)
	})
	return out, err
}

// Formulas renders the boost and cost curves of every catalog upgrade.
func (s *Service) Formulas() []FormulaView {
	ups := s.catalog.Upgrades()
	out := make([]FormulaView, 0, len(ups))
	for _, u := range ups {
		out = append(out, formulaView(u))
	}
	return out
}

func (s *Service) Formula(name string) (FormulaView, error) {
	u, err := s.catalog.Upgrade(name)
	if err != nil {
		return FormulaView{}, err
	}
	return formulaView(u), nil
}

func formulaView(u catalog.Upgrade) FormulaView {
	targets := make([]string, 0, len(u.Targets))
	for _, c := range u.Targets {
		targets = append(targets, c.String())
	}
	curve := "level"
	if r, ok := u.Curve.(interface{ Render(string) string }); ok {
		curve = r.Render("level")
	}
	return FormulaView{
		Upgrade:     u.Name,
		Description: u.Description,
		Kind:        u.Kind.String(),
		Targets:     targets,
		Curve:       curve,
		Cost:        u.Cost.Render("level"),
		Currency:    u.CostCurrency.String(),
		MaxLevel:    u.MaxLevel,
	}
}

func (s *Service) resolve(f catalog.Furnace, count int64, balance currency.Bundle, levels map[string]int64) revenue.Result {
	req := buildRequest(f, count, s.registry.Snapshot(), s.catalog.Upgrades(), levels, balance)
	return s.resolver.Resolve(req)
}

// serializable runs fn in a serializable transaction, retrying on
// serialization failures with backoff. fn must commit.
func (s *Service) serializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			return fn(tx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func loadWallet(ctx context.Context, q querier, playerID string, forUpdate bool) (balance, peak currency.Bundle, updated time.Time, err error) {
	query := `
		SELECT balance, peak, updated_at
		FROM refinery.wallets
		WHERE player_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var rawBalance, rawPeak []byte
	if err = q.QueryRow(ctx, query, playerID).Scan(&rawBalance, &rawPeak, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrPlayerNotFound
		}
		return
	}
	if balance, err = decodeBundle(rawBalance); err != nil {
		return
	}
	peak, err = decodeBundle(rawPeak)
	return
}

func loadLevels(ctx context.Context, q querier, playerID string, forUpdate bool) (map[string]int64, error) {
	query := `
		SELECT upgrade, level
		FROM refinery.upgrade_levels
		WHERE player_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := q.Query(ctx, query, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := map[string]int64{}
	for rows.Next() {
		var name string
		var level int64
		if err := rows.Scan(&name, &level); err != nil {
			return nil, err
		}
		levels[name] = level
	}
	return levels, rows.Err()
}

func storeWallet(ctx context.Context, tx pgx.Tx, playerID string, balance, peak currency.Bundle) error {
	rawBalance, err := encodeBundle(balance)
	if err != nil {
		return err
	}
	rawPeak, err := encodeBundle(peak)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE refinery.wallets
		SET balance = $1, peak = $2, updated_at = now()
		WHERE player_id = $3
	`, rawBalance, rawPeak, playerID)
	return err
}

func appendLedgerEntry(ctx context.Context, tx pgx.Tx, playerID, action string, delta currency.Bundle, metadata map[string]any) error {
	raw, err := encodeBundle(delta)
	if err != nil {
		return err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["action"] = action
	metadata["delta"] = delta
	meta, _ := json.Marshal(metadata)
	_, err = tx.Exec(ctx, `
		INSERT INTO refinery.ledger_entries (tx_group_id, player_id, action, delta, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, uuid.NewString(), playerID, action, raw, string(meta))
	return err
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, playerID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO refinery.idempotency_keys (player_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (player_id, key) DO NOTHING
	`, playerID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
