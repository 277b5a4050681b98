package serve

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/sqlock/sqlock/cmd/util"
	"github.com/sqlock/sqlock/rpc/common"
	"github.com/sqlock/sqlock/rpc/serializer"
	"github.com/sqlock/sqlock/rpc/server"
	"github.com/sqlock/sqlock/rpc/transport"
	"github.com/sqlock/sqlock/rpc/transport/http"
	"github.com/sqlock/sqlock/rpc/transport/tcp"
	"github.com/sqlock/sqlock/rpc/transport/unix"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the sqlock server",
		Long:    `Start the lock server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SQLOCK_<flag> (e.g. SQLOCK_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=lstore", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: lstore, dstore"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(Cluster Mode) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Other raft configuration parameters (ElectionRTT, HeartbeatRTT) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(Cluster Mode) SnapshotEntries defines how often the state machine should be snapshotted automatically, in terms of applied Raft log entries"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(Cluster Mode) CompactionOverhead defines the number of snapshots retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(Cluster Mode) DataDir is the directory used for storing raft logs and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Cluster Mode) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Cluster Mode) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Request timeout in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/sqlock.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for accepted connections (only for tcp)"))

	key = "tcp-keepalive-sec"
	ServeCmd.PersistentFlags().Int(key, 30, cmdUtil.WrapString("TCP keep-alive period in seconds, 0 disables keep-alive probes (only for tcp)"))

	key = "read-buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket read buffer size in bytes, 0 keeps the OS default (only for tcp)"))

	key = "write-buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket write buffer size in bytes, 0 keeps the OS default (only for tcp)"))
}

// hashString maps a human readable node name to a stable numeric ID
func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	shardsConfig := viper.GetString("shards")
	serveCmdConfig.Shards = []common.ServerShard{}
	for _, shardConfig := range strings.Split(shardsConfig, ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}

		// Parse shard type
		var shardType common.ServerShardType
		switch strings.TrimSpace(parts[1]) {
		case "lstore":
			shardType = common.ShardTypeLocalLockStore
		case "dstore":
			shardType = common.ShardTypeRaftLockStore
		default:
			return fmt.Errorf("invalid shard type: %s (expected one of: lstore, dstore)", parts[1])
		}

		serveCmdConfig.Shards = append(serveCmdConfig.Shards, common.ServerShard{
			ShardID: shardID,
			Type:    shardType,
		})
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive-sec")
	serveCmdConfig.ReadBufferSize = viper.GetInt("read-buffer-size")
	serveCmdConfig.WriteBufferSize = viper.GetInt("write-buffer-size")

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = hashString(id)
	} else if serveCmdConfig.HasRaftShard() {
		// error only if cluster mode
		return fmt.Errorf("ReplicaID is required for raft shards")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			serveCmdConfig.ClusterMembers[hashString(parts[0])] = parts[1]
		}
	} else if serveCmdConfig.HasRaftShard() {
		// error only if cluster mode
		return fmt.Errorf("ClusterMembers is required for raft shards")
	}

	// test if the replica id is in the cluster members (only for cluster mode)
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasRaftShard() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the lock server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHTTPServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads in env files and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("sqlock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
