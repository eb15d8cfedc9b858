// Command avian-backup creates, inspects, restores and QR-transfers Avian
// wallet backups against the configured wallet storage.
//
// Passwords are always prompted on the terminal; configuration comes from
// BACKUP_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/app"
	"github.com/AlexZinkM/avian-backup/internal/backup"
	"github.com/AlexZinkM/avian-backup/internal/common"
	"github.com/AlexZinkM/avian-backup/internal/config"
	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
	"github.com/AlexZinkM/avian-backup/internal/qrchunk"
	"github.com/AlexZinkM/avian-backup/internal/scan"
)

const passwordAttempts = 3

func usage() {
	fmt.Fprintf(os.Stderr, `avian-backup %s
Usage:
  avian-backup create     [-type full|wallets-only] [-encrypt] [-o file]
  avian-backup inspect    -in file
  avian-backup restore    -in file [-skip categories] [-overwrite]
  avian-backup rekey      -in file [-o file]
  avian-backup qr-split   -in file
  avian-backup qr-png     -in file [-dir dir] [-size px]
  avian-backup qr-combine [-o file] chunk...
  avian-backup scan       [-o file] [-restore]    (one chunk per line on stdin)
  avian-backup version
`, app.Version)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "version":
		fmt.Printf("avian-backup %s\n", app.Version)
		return
	case "qr-split":
		err = cmdQRSplit(cfg, args)
	case "qr-png":
		err = cmdQRPNG(ctx, cfg, args)
	case "qr-combine":
		err = cmdQRCombine(cfg, args)
	case "create", "inspect", "restore", "rekey", "scan":
		var a *app.App
		a, err = app.New(ctx, cfg, logger)
		if err != nil {
			break
		}
		defer a.Close()
		switch cmd {
		case "create":
			err = cmdCreate(ctx, a, args)
		case "inspect":
			err = cmdInspect(ctx, a, args)
		case "restore":
			err = cmdRestore(ctx, a, args)
		case "rekey":
			err = cmdRekey(ctx, a, args)
		case "scan":
			err = cmdScan(ctx, a, args)
		}
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Debug("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func cmdCreate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	kind := fs.String("type", string(model.BackupTypeFull), "backup type: full or wallets-only")
	encrypt := fs.Bool("encrypt", false, "encrypt the file with a password")
	out := fs.String("o", "", "output file (default avian-backup-<type>-<date>.json)")
	_ = fs.Parse(args)

	var password []byte
	if *encrypt {
		var err error
		password, err = config.PromptNewPassword("Backup password")
		if err != nil {
			return err
		}
		defer clear(password)
	}

	doc, err := a.Service.CreateBackup(ctx, model.BackupType(*kind))
	if err != nil {
		return err
	}
	data, err := a.Service.ExportBackup(ctx, doc, password)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = backup.Filename(doc.Metadata.BackupType, time.Now())
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	fmt.Printf("Backup %s written to %s (%d wallets, encrypted: %v)\n",
		doc.Metadata.BackupID, path, len(doc.Wallets), *encrypt)
	return nil
}

func cmdInspect(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "backup file")
	_ = fs.Parse(args)

	data, err := readInput(*in)
	if err != nil {
		return err
	}
	res, err := parseWithPrompt(ctx, a.Service, data)
	if err != nil {
		return err
	}
	printPreview(res)
	return nil
}

func cmdRestore(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	in := fs.String("in", "", "backup file")
	skip := fs.String("skip", "", "comma separated categories to leave out, e.g. transactions,securityAudit")
	overwrite := fs.Bool("overwrite", false, "replace local records that share a key with the backup")
	_ = fs.Parse(args)

	data, err := readInput(*in)
	if err != nil {
		return err
	}
	opts, err := restoreOptions(*skip, *overwrite)
	if err != nil {
		return err
	}
	return restoreData(ctx, a.Service, data, opts)
}

func cmdRekey(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("rekey", flag.ExitOnError)
	in := fs.String("in", "", "encrypted backup file")
	out := fs.String("o", "", "output file (default: overwrite input)")
	_ = fs.Parse(args)

	data, err := readInput(*in)
	if err != nil {
		return err
	}
	if !crypto.IsEncrypted(data) {
		return errs.ErrNotEncrypted
	}

	oldPassword, err := config.PromptPassword("Current password")
	if err != nil {
		return err
	}
	defer clear(oldPassword)
	newPassword, err := config.PromptNewPassword("New password")
	if err != nil {
		return err
	}
	defer clear(newPassword)

	rekeyed, err := a.Service.Rekey(ctx, data, oldPassword, newPassword)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = *in
	}
	if err := os.WriteFile(path, rekeyed, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	fmt.Printf("Re-encrypted backup written to %s\n", path)
	return nil
}

func cmdQRSplit(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("qr-split", flag.ExitOnError)
	in := fs.String("in", "", "backup file")
	_ = fs.Parse(args)

	chunks, err := splitFile(cfg, *in)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		fmt.Println(c)
	}
	return nil
}

func cmdQRPNG(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("qr-png", flag.ExitOnError)
	in := fs.String("in", "", "backup file")
	dir := fs.String("dir", ".", "directory for the PNG files")
	size := fs.Int("size", cfg.QRPNGSize, "image width and height in pixels")
	_ = fs.Parse(args)

	chunks, err := splitFile(cfg, *in)
	if err != nil {
		return err
	}
	images, err := qrchunk.RenderAll(ctx, chunks, *size)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*dir, 0o700); err != nil {
		return err
	}
	for i, img := range images {
		path := filepath.Join(*dir, fmt.Sprintf("avian-qr-%02d-of-%02d.png", i+1, len(images)))
		if err := os.WriteFile(path, img, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Println(path)
	}
	return nil
}

func cmdQRCombine(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("qr-combine", flag.ExitOnError)
	out := fs.String("o", "avian-backup-scanned.json", "output file")
	_ = fs.Parse(args)

	svc := transferService(cfg)
	data, err := svc.CombineFromTransfer(fs.Args())
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	fmt.Printf("Backup written to %s (encrypted: %v)\n", *out, crypto.IsEncrypted(data))
	return nil
}

// cmdScan collects chunks from a keyboard-mode scanner on stdin.
func cmdScan(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	out := fs.String("o", "", "write the scanned backup to this file")
	restore := fs.Bool("restore", false, "restore the scanned backup right away")
	_ = fs.Parse(args)

	cameras := scan.NewCameraManager(scan.NewLineCamera(os.Stdin), a.Logger.Named("camera"))
	scanner := scan.NewScanner(cameras, scan.TextDecoder, 0, a.Logger.Named("scan"))

	fmt.Fprintln(os.Stderr, "Scan the QR codes, in any order. Ctrl+C to abort.")
	sess := scan.NewSession()
	payload, err := scanner.Run(ctx, sess, func(p scan.Progress) {
		fmt.Fprintf(os.Stderr, "\rCollected %d/%d", p.Received, p.Total)
		if missing := sess.Missing(); len(missing) > 0 && len(missing) <= 10 {
			fmt.Fprintf(os.Stderr, ", missing %s", codeNumbers(missing))
		}
		fmt.Fprint(os.Stderr, "\033[K")
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	data, err := backup.DecodePayload(payload)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := os.WriteFile(*out, data, 0o600); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}
		fmt.Printf("Backup written to %s\n", *out)
	}
	if *restore {
		return restoreData(ctx, a.Service, data, model.DefaultRestoreOptions())
	}
	if *out == "" {
		res, err := parseWithPrompt(ctx, a.Service, data)
		if err != nil {
			return err
		}
		printPreview(res)
	}
	return nil
}

// restoreData drives the import flow: parse, password prompt, preview, confirm.
func restoreData(ctx context.Context, svc *backup.Service, data []byte, opts model.RestoreOptions) error {
	flow := backup.NewImportFlow(svc)

	state, err := flow.SelectFile(ctx, data)
	for attempt := 0; state == backup.StateNeedsPassword && attempt < passwordAttempts; attempt++ {
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		password, perr := config.PromptPassword("Backup password")
		if perr != nil {
			return perr
		}
		state, err = flow.SubmitPassword(ctx, password)
		clear(password)
	}
	if state != backup.StatePreviewed {
		if err == nil {
			err = flow.Err()
		}
		return err
	}

	printPreview(flow.Preview())

	summary, err := flow.Confirm(ctx, opts, func(step string, percent int) {
		fmt.Fprintf(os.Stderr, "\r%3d%% %-20s", percent, step)
	})
	fmt.Fprintln(os.Stderr)
	printSummary(summary)
	return err
}

func parseWithPrompt(ctx context.Context, svc *backup.Service, data []byte) (*backup.ParseResult, error) {
	res, err := svc.ParseBackupFile(ctx, data, nil)
	for attempt := 0; attempt < passwordAttempts; attempt++ {
		if !errors.Is(err, errs.ErrRequiresPassword) && !errors.Is(err, errs.ErrDecryptionFailed) {
			break
		}
		if attempt > 0 {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		password, perr := config.PromptPassword("Backup password")
		if perr != nil {
			return nil, perr
		}
		res, err = svc.ParseBackupFile(ctx, data, password)
		clear(password)
	}
	return res, err
}

// codeNumbers lists chunk indexes the way the codes are labelled, from 1.
func codeNumbers(indexes []int) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.Itoa(idx + 1)
	}
	return strings.Join(parts, ",")
}

func restoreOptions(skip string, overwrite bool) (model.RestoreOptions, error) {
	opts := model.DefaultRestoreOptions()
	opts.OverwriteExisting = overwrite
	if skip == "" {
		return opts, nil
	}
	for _, name := range strings.Split(skip, ",") {
		switch model.Category(strings.TrimSpace(name)) {
		case model.CategoryWallets:
			opts.IncludeWallets = false
		case model.CategoryAddressBook:
			opts.IncludeAddressBook = false
		case model.CategorySettings:
			opts.IncludeSettings = false
		case model.CategoryTransactions:
			opts.IncludeTransactions = false
		case model.CategorySecurityAudit:
			opts.IncludeSecurityAudit = false
		case model.CategoryWatchedAddresses:
			opts.IncludeWatchedAddresses = false
		default:
			return opts, fmt.Errorf("unknown category %q", name)
		}
	}
	return opts, nil
}

// transferService is enough for chunking, which never touches storage.
func transferService(cfg *config.Config) *backup.Service {
	return backup.NewService(nil, nil, backup.Options{AppVersion: app.Version, MaxChunkPayload: cfg.MaxChunkPayload}, nil)
}

func splitFile(cfg *config.Config, path string) ([]string, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return transferService(cfg).SplitForTransfer(data)
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("-in is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func printPreview(res *backup.ParseResult) {
	if res == nil || res.Document == nil {
		return
	}
	doc := res.Document
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		BackupID         string           `json:"backupId"`
		Type             model.BackupType `json:"backupType"`
		Version          string           `json:"version"`
		Created          string           `json:"created"`
		Encrypted        bool             `json:"encrypted"`
		Wallets          int              `json:"wallets"`
		Contacts         int              `json:"contacts"`
		Transactions     int              `json:"transactions"`
		Volume           string           `json:"transactionVolumeAVN"`
		AuditEvents      int              `json:"auditEvents"`
		WatchedAddresses int              `json:"watchedAddresses"`
	}{
		BackupID:         doc.Metadata.BackupID,
		Type:             doc.Metadata.BackupType,
		Version:          doc.Version,
		Created:          time.UnixMilli(doc.Timestamp).UTC().Format(time.RFC3339),
		Encrypted:        res.Encrypted,
		Wallets:          res.Validation.WalletsCount,
		Contacts:         res.Validation.AddressesCount,
		Transactions:     len(doc.Transactions),
		Volume:           transactionVolume(doc.Transactions),
		AuditEvents:      len(doc.SecurityAudit),
		WatchedAddresses: len(doc.WatchedAddresses),
	})
}

// transactionVolume sums transaction amounts; the validator has already
// rejected amounts that do not parse.
func transactionVolume(txs []model.TransactionRecord) string {
	var total uint64
	for _, tx := range txs {
		sat, err := common.AVNToSatoshis(tx.Amount)
		if err == nil {
			total += sat
		}
	}
	return common.SatoshisToAVN(total)
}

func printSummary(s model.RestoreSummary) {
	fmt.Printf("Restored: %d wallets, %d contacts, %d settings, %d transactions, %d audit events, %d watched addresses\n",
		s.WalletsRestored, s.AddressesRestored, s.SettingsRestored,
		s.TransactionsRestored, s.AuditEventsRestored, s.WatchedRestored)
	fmt.Printf("Skipped existing records: %d\n", s.RecordsSkipped)
	if s.Partial {
		fmt.Printf("Stopped at %s; completed: %v\n", s.Failed, s.Completed)
	}
}
