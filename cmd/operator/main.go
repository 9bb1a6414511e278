// The operator command runs the off-chain coordinator for a delegated mining
// pool: it serves the HTTP edge, drives round rotation and submission, and
// reconciles member balances on-chain.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/inconshreveable/log15"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/regolith-labs/ore-pool-sub000/chain"
	"github.com/regolith-labs/ore-pool-sub000/database"
	"github.com/regolith-labs/ore-pool-sub000/ore"
	"github.com/regolith-labs/ore-pool-sub000/pool"
	"github.com/regolith-labs/ore-pool-sub000/server"
)

var log = log15.New("module", "operator")

var (
	keypairFlag = &cli.StringFlag{
		Name:    "keypair",
		Usage:   "path to the operator keypair file (solana-keygen format)",
		EnvVars: []string{"KEYPAIR_PATH"},
	}
	rpcFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "chain RPC endpoint",
		EnvVars: []string{"RPC_URL"},
	}
	dbFlag = &cli.StringFlag{
		Name:    "db-url",
		Usage:   "postgres connection URL for the members table",
		EnvVars: []string{"DB_URL"},
	}
	commissionFlag = &cli.Uint64Flag{
		Name:    "commission",
		Usage:   "operator commission in percent (0..100)",
		EnvVars: []string{"OPERATOR_COMMISSION"},
	}
	tokenFlag = &cli.StringFlag{
		Name:    "webhook-token",
		Usage:   "shared secret the webhook sender presents in Authorization",
		EnvVars: []string{"HELIUS_AUTH_TOKEN"},
	}
	listenFlag = &cli.StringFlag{
		Name:    "listen",
		Usage:   "HTTP listen address",
		EnvVars: []string{"LISTEN_ADDR"},
		Value:   ":3000",
	}
	revokeFlag = &cli.BoolFlag{
		Name:  "revoke",
		Usage: "revoke approval instead of granting it",
	}
)

func main() {
	// Optional; deployments may inject env directly.
	godotenv.Load()

	app := &cli.App{
		Name:   "operator",
		Usage:  "off-chain coordinator for a delegated ORE mining pool",
		Flags:  []cli.Flag{keypairFlag, rpcFlag, dbFlag, commissionFlag, tokenFlag, listenFlag},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "approve",
				Usage:     "approve or revoke a member for contribution admission",
				ArgsUsage: "<member-authority>",
				Flags:     []cli.Flag{keypairFlag, dbFlag, revokeFlag},
				Action:    approve,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("operator exited", "err", err)
		os.Exit(1)
	}
}

func requireString(c *cli.Context, f *cli.StringFlag) (string, error) {
	v := c.String(f.Name)
	if v == "" {
		return "", fmt.Errorf("missing required setting --%s (env %s)", f.Name, f.EnvVars[0])
	}
	return v, nil
}

func run(c *cli.Context) error {
	keypairPath, err := requireString(c, keypairFlag)
	if err != nil {
		return err
	}
	rpcURL, err := requireString(c, rpcFlag)
	if err != nil {
		return err
	}
	dbURL, err := requireString(c, dbFlag)
	if err != nil {
		return err
	}
	token, err := requireString(c, tokenFlag)
	if err != nil {
		return err
	}
	if !c.IsSet(commissionFlag.Name) {
		return fmt.Errorf("missing required setting --%s (env %s)", commissionFlag.Name, commissionFlag.EnvVars[0])
	}

	signer, err := solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
	if err != nil {
		return fmt.Errorf("load keypair: %w", err)
	}
	store, err := database.Open(dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	op, err := pool.New(signer, c.Uint64(commissionFlag.Name), chain.Dial(rpcURL), store)
	if err != nil {
		return err
	}
	poolAddr, bump := op.PoolAddress()
	log.Info("operator starting",
		"authority", op.Authority(),
		"pool", poolAddr,
		"bump", bump,
		"commission", c.Uint64(commissionFlag.Name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return op.Run(ctx) })
	g.Go(func() error { return server.New(op, token).Run(ctx, c.String(listenFlag.Name)) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("operator stopped")
		return nil
	}
	return err
}

// approve flips the admission flag on a member row. Runs against the database
// directly; the daemon picks the change up on the member's next contribution.
func approve(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one member authority argument")
	}
	authority, err := solana.PublicKeyFromBase58(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid member authority: %w", err)
	}
	keypairPath, err := requireString(c, keypairFlag)
	if err != nil {
		return err
	}
	dbURL, err := requireString(c, dbFlag)
	if err != nil {
		return err
	}

	signer, err := solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
	if err != nil {
		return fmt.Errorf("load keypair: %w", err)
	}
	poolAddr, _ := ore.PoolAddress(signer.PublicKey())
	member, _ := ore.MemberAddress(authority, poolAddr)

	store, err := database.Open(dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	approved := !c.Bool(revokeFlag.Name)
	if err := store.SetApproved(member.String(), approved); err != nil {
		return err
	}
	log.Info("member approval updated", "authority", authority, "member", member, "approved", approved)
	return nil
}
