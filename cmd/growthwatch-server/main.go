package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/growthwatch/growthwatch/internal/config"
	"github.com/growthwatch/growthwatch/internal/domain/diagnosis"
	"github.com/growthwatch/growthwatch/internal/domain/growth"
	"github.com/growthwatch/growthwatch/internal/domain/patient"
	"github.com/growthwatch/growthwatch/internal/platform/auth"
	"github.com/growthwatch/growthwatch/internal/platform/db"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "growthwatch-server",
		Short:        "Child growth monitoring and stunting diagnosis API",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(zscoreCmd())
	root.AddCommand(tokenCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load symptoms, conditions, rule groups and sample patients from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			cat, err := diagnosis.LoadCatalogFile(file)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			patients := patient.NewRepoPG(pool)
			svc, closeFn, err := newDiagnosisService(ctx, cfg, pool, patients, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.SeedCatalog(ctx, cat); err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			n, err := patient.Seed(ctx, patients, cat.Patients)
			if err != nil {
				return fmt.Errorf("seed patients: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d symptom(s), %d condition(s), %d rule group(s), %d patient(s) from %s\n",
				len(cat.Symptoms), len(cat.Conditions), len(cat.RuleGroups), n, file)
			return nil
		},
	}
	cmd.Flags().String("file", "seeds/catalog.yaml", "Catalog YAML file")
	return cmd
}

func zscoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zscore",
		Short: "Compute weight-for-age and height-for-age Z-scores offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			birthRaw, _ := cmd.Flags().GetString("birth")
			measuredRaw, _ := cmd.Flags().GetString("measured")
			sexRaw, _ := cmd.Flags().GetString("sex")
			weight, _ := cmd.Flags().GetFloat64("weight")
			height, _ := cmd.Flags().GetFloat64("height")

			birth, err := time.Parse(time.DateOnly, birthRaw)
			if err != nil {
				return fmt.Errorf("--birth must be YYYY-MM-DD: %w", err)
			}
			measured := time.Now().UTC()
			if measuredRaw != "" {
				if measured, err = time.Parse(time.DateOnly, measuredRaw); err != nil {
					return fmt.Errorf("--measured must be YYYY-MM-DD: %w", err)
				}
			}
			sex, err := patient.ParseSex(sexRaw)
			if err != nil {
				return err
			}

			z, err := growth.ComputeZScores(growth.DefaultCurve(), birth, sex, measured, weight, height)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "age_months=%d weight_for_age=%.2f height_for_age=%.2f\n",
				z.AgeMonths, z.WeightForAge, z.HeightForAge)
			return nil
		},
	}
	cmd.Flags().String("birth", "", "Birth date (YYYY-MM-DD)")
	cmd.Flags().String("measured", "", "Measurement date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().String("sex", "", "male|female (M/F/L/P accepted)")
	cmd.Flags().Float64("weight", 0, "Weight in kg")
	cmd.Flags().Float64("height", 0, "Height in cm")
	_ = cmd.MarkFlagRequired("birth")
	_ = cmd.MarkFlagRequired("sex")
	_ = cmd.MarkFlagRequired("weight")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			issuer, _ := cmd.Flags().GetString("issuer")
			patientID, _ := cmd.Flags().GetString("patient")
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				key = os.Getenv("AUTH_SIGNING_KEY")
			}
			if len(key) < 32 {
				return fmt.Errorf("signing key must be at least 32 characters (set --key or AUTH_SIGNING_KEY)")
			}
			caregiver := false
			for i, r := range roles {
				roles[i] = strings.ToLower(strings.TrimSpace(r))
				switch roles[i] {
				case auth.RoleCaregiver:
					caregiver = true
				case auth.RoleAdmin, auth.RoleExpert:
				default:
					return fmt.Errorf("unknown role %q", r)
				}
			}
			if patientID != "" {
				if _, err := uuid.Parse(patientID); err != nil {
					return fmt.Errorf("--patient must be a patient id: %w", err)
				}
			} else if caregiver {
				return fmt.Errorf("caregiver tokens need --patient")
			}

			token, err := auth.IssueToken([]byte(key), issuer, subject, patientID, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject (user id)")
	cmd.Flags().StringSlice("role", []string{auth.RoleCaregiver}, "Role(s) to grant")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	cmd.Flags().String("issuer", os.Getenv("AUTH_ISSUER"), "Token issuer")
	cmd.Flags().String("patient", "", "Patient id a caregiver token is bound to")
	cmd.Flags().String("key", "", "HS256 signing key (defaults to AUTH_SIGNING_KEY)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
