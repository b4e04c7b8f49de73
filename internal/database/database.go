package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"

	"wallet_shop/internal/config"
	"wallet_shop/internal/utils"
)

// --- Configuration ScyllaDB ---
type ScyllaKeyspaceConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	Timeout     time.Duration
	NumConns    int
	Consistency gocql.Consistency
}

type ScyllaManager struct {
	sessions map[string]*gocql.Session // keyspace → session
	configs  map[string]ScyllaKeyspaceConfig
	shop     string
	audit    string
	mu       sync.Mutex
}

// --- Variables Globales ---
var (
	Scylla *ScyllaManager
	Redis  *redis.Client
	MinIO  *minio.Client
)

// ConnectDatabases ouvre les connexions nécessaires au driver choisi.
// Redis et MinIO sont optionnels en dehors du driver scylla.
func ConnectDatabases(cfg config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.StoreDriver == "scylla" {
		if err := InitScyllaDB(cfg); err != nil {
			return fmt.Errorf("échec initialisation ScyllaDB: %w", err)
		}
	}

	if cfg.RedisHost != "" {
		if err := connectRedis(ctx, cfg); err != nil {
			if cfg.StoreDriver == "scylla" {
				return err
			}
			utils.Log.Warnf("⚠️ Redis indisponible, cache et rate limit désactivés: %v", err)
			Redis = nil
		}
	}

	if cfg.MinIOEndpoint != "" {
		if err := connectMinIO(ctx, cfg); err != nil {
			return err
		}
	}

	utils.Log.Info("✅ Toutes les bases de données sont connectées")
	return nil
}

// =============================================
// SCYLLA DB (keyspace boutique + keyspace audit)
// =============================================

// InitScyllaDB initialise le gestionnaire de sessions ScyllaDB
func InitScyllaDB(cfg config.Config) error {
	Scylla = &ScyllaManager{
		sessions: make(map[string]*gocql.Session),
		configs:  loadScyllaConfigs(cfg),
		shop:     cfg.ScyllaKeyspace,
		audit:    cfg.ScyllaAuditKeyspace,
	}
	if Scylla.audit == "" {
		Scylla.audit = Scylla.shop
	}

	for keyspace := range Scylla.configs {
		if _, err := Scylla.GetSession(keyspace); err != nil {
			return fmt.Errorf("échec initialisation keyspace %s: %w", keyspace, err)
		}
	}
	return nil
}

func loadScyllaConfigs(cfg config.Config) map[string]ScyllaKeyspaceConfig {
	configs := make(map[string]ScyllaKeyspaceConfig)

	base := ScyllaKeyspaceConfig{
		Hosts:       cfg.ScyllaHosts,
		Username:    cfg.ScyllaUsername,
		Password:    cfg.ScyllaPassword,
		Timeout:     5 * time.Second,
		NumConns:    20,
		Consistency: gocql.Quorum,
	}

	for _, ks := range []string{cfg.ScyllaKeyspace, cfg.ScyllaAuditKeyspace} {
		if ks == "" {
			continue
		}
		c := base
		c.Keyspace = ks
		configs[ks] = c
	}
	return configs
}

func createScyllaCluster(config ScyllaKeyspaceConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Keyspace = config.Keyspace
	cluster.Consistency = config.Consistency
	cluster.Timeout = config.Timeout
	cluster.NumConns = config.NumConns

	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = 1 * time.Second
	if config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}

	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster
}

// GetSession retourne une session pour un keyspace donné
func (sm *ScyllaManager) GetSession(keyspace string) (*gocql.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	config, exists := sm.configs[keyspace]
	if !exists {
		return nil, fmt.Errorf("keyspace '%s' non configuré", keyspace)
	}

	if session, exists := sm.sessions[keyspace]; exists {
		if err := session.Query("SELECT now() FROM system.local").Exec(); err == nil {
			return session, nil
		}
		// session invalide : on la recrée
		session.Close()
	}

	session, err := createScyllaCluster(config).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("erreur création session pour %s: %w", keyspace, err)
	}

	sm.sessions[keyspace] = session
	utils.Log.Infof("✅ Nouvelle session ScyllaDB pour keyspace '%s'", keyspace)
	return session, nil
}

// ShopSession retourne la session du keyspace principal
func (sm *ScyllaManager) ShopSession() (*gocql.Session, error) {
	return sm.GetSession(sm.shop)
}

// AuditSession retourne la session du keyspace d'audit (le keyspace
// principal si aucun keyspace d'audit n'est configuré)
func (sm *ScyllaManager) AuditSession() (*gocql.Session, error) {
	return sm.GetSession(sm.audit)
}

// CloseScylla ferme toutes les sessions ScyllaDB
func CloseScylla() {
	if Scylla == nil {
		return
	}
	Scylla.mu.Lock()
	defer Scylla.mu.Unlock()

	for keyspace, session := range Scylla.sessions {
		session.Close()
		utils.Log.Infof("🔌 Session ScyllaDB fermée pour keyspace '%s'", keyspace)
	}
}

// =============================================
// REDIS
// =============================================
func connectRedis(ctx context.Context, cfg config.Config) error {
	Redis = redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if err := Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("erreur connexion Redis: %w", err)
	}
	utils.Log.Info("✅ Connecté à Redis")
	return nil
}

// CloseRedis ferme la connexion Redis
func CloseRedis() {
	if Redis != nil {
		_ = Redis.Close()
	}
}

// =============================================
// MINIO
// =============================================
func connectMinIO(ctx context.Context, cfg config.Config) error {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return fmt.Errorf("erreur connexion MinIO: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return fmt.Errorf("erreur vérification bucket MinIO: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("erreur création bucket MinIO: %w", err)
		}
		utils.Log.Infof("🪣 Bucket créé : %s", cfg.MinIOBucket)
	} else {
		utils.Log.Infof("🪣 Bucket MinIO déjà présent : %s", cfg.MinIOBucket)
	}

	MinIO = client
	utils.Log.Infof("✅ Connecté à MinIO : %s", cfg.MinIOEndpoint)
	return nil
}
