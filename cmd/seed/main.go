package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"

	"medialib/internal/blobstore"
	"medialib/internal/config"
	"medialib/internal/domain"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/repository/postgres"
	postgresLibrary "medialib/internal/repository/postgres/library"
	"medialib/internal/resizer"
	authService "medialib/internal/service/auth"
	libraryService "medialib/internal/service/library"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Folder paths created for the seed owner
var seedFolders = []string{
	"Photos/2024/Summer",
	"Photos/2024/Winter",
	"Photos/2023",
	"Documents/Invoices",
	"Videos",
}

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed folders")
	clearData := flag.Bool("clear-data", false, "Clear all folders and assets of the owner (keep schema)")
	owner := flag.String("owner", os.Getenv("SEED_OWNER_ID"), "Owner id to seed for")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if !*schemaOnly && !*dropTables && *owner == "" {
		log.Fatal("--owner (or SEED_OWNER_ID) is required to seed or clear data")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly || *owner == "" {
		return
	}

	// Create repositories and services
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderRepo := postgresLibrary.NewFolderRepository(repoConfig)
	assetRepo := postgresLibrary.NewAssetRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	blobs, err := blobstore.NewDiskStore(cfg.BlobDir, cfg.BlobBaseURL, logger)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	authorizer := authService.NewOwnerBasedAuthorizer(folderRepo, assetRepo)
	pathResolver := libraryService.NewPathResolver(folderRepo, logger)
	assetService := libraryService.NewAssetService(assetRepo, folderRepo, blobs, resizer.NewLocal(blobs, logger), authorizer, cfg.ResizeTimeout, logger)
	folderService := libraryService.NewFolderService(folderRepo, assetRepo, assetService, pathResolver, txManager, authorizer, logger)

	// Clear data through the services so blobs are removed too
	log.Printf("🧹 Clearing folders and assets of %s...", *owner)
	if err := clearOwnerData(ctx, folderService, assetService, *owner); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}
	if *clearData {
		log.Println("✅ Data cleared successfully")
		return
	}

	log.Println("📁 Seeding folder structure...")
	for i, path := range seedFolders {
		id, err := ensurePath(ctx, folderService, *owner, strings.Split(path, "/"))
		if err != nil {
			log.Printf("❌ Failed to create %s: %v", path, err)
			continue
		}
		log.Printf("✅ Created folder %d/%d: %s (ID: %s)", i+1, len(seedFolders), path, id)
	}

	log.Println("🎉 Seeding complete!")
}

// ensurePath creates each missing segment and returns the id of the last one
func ensurePath(ctx context.Context, folders librarySvc.FolderService, owner string, names []string) (string, error) {
	var parentID *string
	for _, name := range names {
		folder, err := folders.CreateFolder(ctx, &librarySvc.CreateFolderRequest{
			OwnerID:  owner,
			Name:     name,
			ParentID: parentID,
		})

		var conflict *domain.ConflictError
		switch {
		case errors.As(err, &conflict):
			id := conflict.ResourceID
			parentID = &id
		case err != nil:
			return "", err
		default:
			id := folder.ID
			parentID = &id
		}
	}
	return *parentID, nil
}

// clearOwnerData deletes every root folder (cascading) and every unfiled asset
func clearOwnerData(ctx context.Context, folders librarySvc.FolderService, assets librarySvc.AssetService, owner string) error {
	contents, err := folders.ListContents(ctx, owner, nil)
	if err != nil {
		return err
	}
	for _, f := range contents.Folders {
		if err := folders.DeleteFolder(ctx, owner, f.ID); err != nil {
			return err
		}
	}
	for _, a := range contents.Assets {
		if err := assets.DeleteAsset(ctx, owner, a.ID); err != nil {
			return err
		}
	}
	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range tables.All() {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}
