package server

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/lib/lockstore/dstore"
	"github.com/sqlock/sqlock/lib/lockstore/lstore"
	"github.com/sqlock/sqlock/rpc/common"
	"github.com/sqlock/sqlock/rpc/serializer"
	"github.com/sqlock/sqlock/rpc/transport"
)

var Logger = logger.GetLogger("rpc")

// serverShard represents one shard in the RPC server. It contains the
// lock store the shard encapsulates and the adapter that handles
// requests for it.
type serverShard struct {
	Store   lockstore.ILockStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create shards map
	shardMap := xsync.NewMapOf[uint64, serverShard]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     shardMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardID uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get appropriate shard
		shard, ok := s.shards.Load(shardID)

		// Case shard does not exist -> error
		if !ok {
			respMsg = *common.NewErrorResponse("shard not found")
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = *common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
			} else {
				// Let the adapter handle the request
				respMsg = *shard.Adapter.Handle(&msg, shard.Store)
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %s", err)
			return nil
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// Create the Dragonboat NodeHost, only needed for raft shards
	var nodeHost *dragonboat.NodeHost
	var err error
	if s.config.HasRaftShard() {
		nodeHost, err = dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
	}

	// Configure the timeout for the distributed store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE SHARDS

	/*
		Note: A single lock server can host any number of local and or
		raft shards. The following loop creates all the shards and
		stores them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		switch shardConfig.Type {
		case common.ShardTypeLocalLockStore:
			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   lstore.NewLocalStore(),
				Adapter: NewLockStoreServerAdapter(),
			})
			Logger.Infof("created local lock store for shard %d", shardConfig.ShardID)

		case common.ShardTypeRaftLockStore:
			if nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create raft shard")
			}

			// Start Raft for the shard
			if err := nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dstore.NewStateMachineFactory(),
				s.config.ToDragonboatConfig(shardConfig.ShardID),
			); err != nil {
				return fmt.Errorf("failed to start shard %v: %w", shardConfig.ShardID, err)
			}

			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   dstore.NewDistributedStore(nodeHost, shardConfig.ShardID, timeout),
				Adapter: NewLockStoreServerAdapter(),
			})
			Logger.Infof("created raft lock store for shard %d", shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
	}

	Logger.Infof("lock server setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// ServeUntilSignal runs Serve and shuts down on SIGINT or SIGTERM.
func (s *rpcServer) ServeUntilSignal() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		Logger.Infof("received signal %s, shutting down", sig)
		return nil
	}
}
