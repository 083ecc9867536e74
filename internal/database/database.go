package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"
)

// --- Variables Globales ---
var (
	Redis  *redis.Client
	Scylla *gocql.Session
)

// ConnectDatabases initialise Redis (panier, rate limit, pub/sub) et
// ScyllaDB (registre des paiements).
func ConnectDatabases() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	connectRedis(ctx)

	if err := connectScylla(); err != nil {
		log.Fatalf("❌ Échec initialisation ScyllaDB: %v", err)
	}

	log.Println("✅ Toutes les bases de données sont connectées")
}

func connectRedis(ctx context.Context) {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost:6379"
	}

	Redis = redis.NewClient(&redis.Options{
		Addr:         redisHost,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if err := Redis.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ Impossible de se connecter à Redis: %v", err)
	}
	log.Println("✅ Redis connecté avec succès")
}

// connectScylla ouvre la session sur le keyspace payments.
// Les tables doivent être créées via scripts/scylladb_init.cql.
func connectScylla() error {
	hosts := strings.Split(os.Getenv("SCYLLA_HOSTS"), ",")
	keyspace := os.Getenv("SCYLLA_KEYSPACE")
	if keyspace == "" {
		keyspace = "payments"
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 20
	cluster.ReconnectInterval = 1 * time.Second
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	if username := os.Getenv("SCYLLA_USERNAME"); username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: username,
			Password: os.Getenv("SCYLLA_PASSWORD"),
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("erreur création session pour %s: %v", keyspace, err)
	}

	Scylla = session
	log.Printf("✅ Session ScyllaDB ouverte sur keyspace '%s'", keyspace)
	return nil
}

// Close ferme proprement les connexions.
func Close() {
	if Scylla != nil {
		Scylla.Close()
		log.Println("🔌 Session ScyllaDB fermée")
	}
	if Redis != nil {
		if err := Redis.Close(); err != nil {
			log.Printf("⚠️ Fermeture Redis: %v", err)
		}
	}
}
