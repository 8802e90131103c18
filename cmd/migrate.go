/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/vault"
	"github.com/blnkfinance/vault/database"
)

const schema = "vault"

func runMigrations(v *vaultInstance, direction migrate.MigrationDirection) (int, error) {
	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: vault.SQLFiles,
		Root:       "sql",
	}

	db, err := database.ConnectDB(v.cnf.DataSource.Dns)
	if err != nil {
		return 0, fmt.Errorf("error connecting to database: %v", err)
	}
	defer db.Close()

	migrate.SetSchema(schema)
	return migrate.Exec(db, "postgres", migrations, direction)
}

func migrateCommands(v *vaultInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run vault database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(v, migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
				return
			}
			fmt.Printf("Applied %d migrations!\n", n)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(v, migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
				return
			}
			fmt.Printf("Rolled back %d migrations!\n", n)
		},
	})

	return cmd
}

// bootstrapCommands seeds the configured superadmin without starting the server.
func bootstrapCommands(v *vaultInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "create the first superadmin from config",
		Run: func(cmd *cobra.Command, args []string) {
			defer v.close()
			created, err := v.vault.BootstrapSuperadmin(context.Background())
			if err != nil {
				log.Fatalf("bootstrap failed: %v", err)
			}
			if created {
				fmt.Println("Superadmin created")
				return
			}
			fmt.Println("Admins already exist or no superadmin configured; nothing to do")
		},
	}
}
