// Command node runs a single Nodalync node: it loads configuration, opens
// (or creates) the local identity keystore and store, and logs a summary of
// what it found. Transport and ledger are out-of-scope external
// collaborators (spec.md §1/§6), so this entrypoint does not attempt to
// bring up a network stack — it wires the pieces that are in scope and
// leaves Overlay/Ledger construction to whatever embeds ops.New.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/pkg/config"
	"github.com/nodalync/node/pkg/utils"
	"github.com/nodalync/node/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "node:", err)
		os.Exit(1)
	}
}

func run() error {
	log := logrus.New()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return utils.Wrap(err, "load config")
	}
	if lvl, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
		log.SetLevel(lvl)
	}

	password := []byte(utils.EnvOrDefault("NODALYNC_KEYSTORE_PASSWORD", ""))
	if len(password) == 0 {
		return fmt.Errorf("NODALYNC_KEYSTORE_PASSWORD must be set to unlock or create the identity keystore")
	}

	var ks *crypto.Keystore
	if _, statErr := os.Stat(cfg.Identity.KeyPath); statErr == nil {
		ks, err = crypto.OpenKeystore(cfg.Identity.KeyPath, password)
	} else {
		ks, err = crypto.NewKeystore(cfg.Identity.KeyPath, password, nil)
	}
	if err != nil {
		return utils.Wrap(err, "open keystore")
	}
	defer ks.Zeroize()

	s, err := store.Open(store.Config{
		DBPath:        cfg.Storage.DBPath,
		ContentDir:    cfg.Storage.ContentDir,
		CacheDir:      cfg.Storage.CacheDir,
		CacheMaxBytes: cfg.Storage.CacheMaxBytes,
		CacheMaxItems: cfg.Storage.CacheMaxItems,
		Logger:        log,
	})
	if err != nil {
		return utils.Wrap(err, "open store")
	}
	defer s.Close()

	log.WithFields(logrus.Fields{
		"peer_id":         ks.PeerID().String(),
		"db_path":         cfg.Storage.DBPath,
		"listen_addrs":    cfg.Network.ListenAddrs,
		"bootstrap_peers": len(cfg.Network.BootstrapPeers),
		"ledger_network":  cfg.Ledger.Network,
	}).Info("node identity and store ready")

	return nil
}
