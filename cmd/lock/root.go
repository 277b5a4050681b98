package lock

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sqlock/sqlock/cmd/util"
	"github.com/sqlock/sqlock/lib/lockmgr"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/rpc/client"
)

var (
	rpcLockStore lockstore.ILockStore

	expirationSec  uint64
	waitTimeoutSec uint64
	maxAttempts    int

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations against a lock server",
		PersistentPreRunE: setupLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [database]",
		Short: "Acquire the lock for a database",
		Long:  "Acquire the lock for the given database path. On success the owner ID of the lock is printed, it is needed to release the lock again.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [database] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the database path and owner ID. The owner ID is the string returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}

	// statusCmd represents the status command
	statusCmd = &cobra.Command{
		Use:   "status [database]",
		Short: "Show the current lock record of a database",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(statusCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Add flags specific to acquire
	acquireCmd.Flags().Uint64Var(&expirationSec, "expiration", 30, "Lock expiration in seconds")
	acquireCmd.Flags().Uint64Var(&waitTimeoutSec, "wait", 3, "How long to wait for the lock in seconds")
	acquireCmd.Flags().IntVar(&maxAttempts, "max-attempts", 10, "Maximum number of acquisition attempts")
}

// setupLockClient initializes the RPC lock store
func setupLockClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardID := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the lock store client
	rpcLockStore, err = client.NewRPCLockStore(
		shardID,
		*config,
		t,
		s,
	)

	return err
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	database := args[0]

	mgr, err := lockmgr.New(rpcLockStore, nil, lockmgr.Config{
		Database:    database,
		Expiration:  time.Duration(expirationSec) * time.Second,
		WaitTimeout: time.Duration(waitTimeoutSec) * time.Second,
		MaxAttempts: maxAttempts,
	})
	if err != nil {
		return err
	}

	if err := mgr.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	fmt.Printf("acquired=true ownerID=%s key=%s\n", mgr.OwnerID(), mgr.Key())
	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	database := args[0]
	ownerID := args[1]

	if err := rpcLockStore.DeleteIfOwner(lockstore.KeyForDatabase(database), ownerID); err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Println("released=true")
	return nil
}

// runStatus handles the status command
func runStatus(_ *cobra.Command, args []string) error {
	database := args[0]

	rec, found, err := rpcLockStore.Get(lockstore.KeyForDatabase(database))
	if err != nil {
		return fmt.Errorf("failed to read lock record: %v", err)
	}

	if !found {
		fmt.Println("locked=false")
		return nil
	}

	expiresAt := time.UnixMilli(rec.ExpiresAt)
	fmt.Printf("locked=%t ownerID=%s expiresAt=%s\n",
		!rec.Expired(time.Now()), rec.OwnerID, expiresAt.Format(time.RFC3339))
	return nil
}
