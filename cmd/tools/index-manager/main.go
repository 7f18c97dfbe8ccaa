// cmd/tools/index-manager/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"searchmodel/internal/common/config"
	"searchmodel/internal/common/database"
	"searchmodel/internal/common/logger"
	"searchmodel/internal/search"
	"searchmodel/pkg/registry"
)

var modelsPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
	recreateCmd := flag.NewFlagSet("recreate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, listCmd, createCmd, deleteCmd, recreateCmd} {
		fs.StringVar(&modelsPath, "path", "configs/models.json", "Path to model registry file")
	}

	createModel := createCmd.String("model", "", "Model name (required)")
	deleteModel := deleteCmd.String("model", "", "Model name (required)")
	recreateModel := recreateCmd.String("model", "", "Model name, or empty for every model")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(modelsPath)
		if err != nil {
			fmt.Printf("Model registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Model registry validation passed (%d models).\n", len(reg.Models))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(modelsPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, def := range reg.Models {
			fmt.Printf("%-24s index=%-24s primaryKey=%s\n", def.Name, def.Index, def.PrimaryKey)
		}

	case "create":
		createCmd.Parse(os.Args[2:])
		requireModel(createCmd, *createModel)
		run(func(ctx context.Context, catalog *registry.Catalog) error {
			model, err := catalog.Model(*createModel)
			if err != nil {
				return err
			}
			return model.CreateIndex(ctx, search.GeoMapping())
		})
		fmt.Printf("Created index for model %s\n", *createModel)

	case "delete":
		deleteCmd.Parse(os.Args[2:])
		requireModel(deleteCmd, *deleteModel)
		run(func(ctx context.Context, catalog *registry.Catalog) error {
			model, err := catalog.Model(*deleteModel)
			if err != nil {
				return err
			}
			return model.DeleteIndex(ctx)
		})
		fmt.Printf("Deleted index for model %s\n", *deleteModel)

	case "recreate":
		recreateCmd.Parse(os.Args[2:])
		run(func(ctx context.Context, catalog *registry.Catalog) error {
			names := catalog.Names()
			if *recreateModel != "" {
				names = []string{*recreateModel}
			}
			for _, name := range names {
				model, err := catalog.Model(name)
				if err != nil {
					return err
				}
				if err := model.RecreateIndex(ctx); err != nil {
					return fmt.Errorf("model %s: %w", name, err)
				}
				fmt.Printf("Recreated index %s for model %s\n", model.Index(), name)
			}
			return nil
		})

	case "help":
		fallthrough
	default:
		help()
	}
}

func requireModel(fs *flag.FlagSet, name string) {
	if name == "" {
		fmt.Println("Error: model is required.")
		fs.Usage()
		os.Exit(1)
	}
}

// run connects to Elasticsearch, builds the catalog and executes fn.
func run(fn func(ctx context.Context, catalog *registry.Catalog) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(modelsPath)
	if err != nil {
		fmt.Printf("Error loading registry: %v\n", err)
		os.Exit(1)
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		fmt.Printf("Error connecting to Elasticsearch: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, "console")
	catalog, err := registry.NewCatalog(reg, es, search.WithLogger(log))
	if err != nil {
		fmt.Printf("Error building catalog: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := fn(ctx, catalog); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: index-manager <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  validate  -path <file>                Validate the model registry")
	fmt.Println("  list      -path <file>                List registered models")
	fmt.Println("  create    -model <name> [-path <file>]   Create the model index with the geo mapping")
	fmt.Println("  delete    -model <name> [-path <file>]   Delete the model index")
	fmt.Println("  recreate  [-model <name>] [-path <file>] Drop and create model indices")
}
