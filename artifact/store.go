// Package artifact dépose les classeurs générés dans un stockage objet et
// produit des URLs signées à durée limitée.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"usage-reports/config"
	"usage-reports/utils"
)

var ErrEmptyReference = errors.New("artifact: empty reference")

// Store est le contrat consommé par les jobs d'export, le ledger et le sweeper.
type Store interface {
	// Upload dépose le fichier local sous key et retourne la référence à conserver.
	Upload(ctx context.Context, localPath, key string, public bool) (string, error)
	// Delete supprime l'objet; un objet absent n'est pas une erreur.
	Delete(ctx context.Context, ref string) error
	// SignedURL retourne une URL de téléchargement valable ttl, forçant le nom downloadName.
	SignedURL(ctx context.Context, ref string, ttl time.Duration, downloadName string) (string, error)
}

// Key dérive la clé de destination de l'identifiant de requête, pour éviter les collisions entre jobs.
func Key(prefix, requestID, name string) string {
	return path.Join(strings.Trim(prefix, "/"), requestID, path.Base(name))
}

// New instancie l'adaptateur configuré.
func New(ctx context.Context, cfg config.ArtifactsConfig) (Store, error) {
	switch cfg.Provider {
	case "minio":
		return NewMinioStore(cfg.Endpoint, cfg.ID, cfg.Secret, cfg.Bucket, cfg.UseSSL)
	case "s3":
		return NewS3Store(ctx, cfg.ID, cfg.Secret, cfg.Region, cfg.Bucket, cfg.Endpoint)
	case "filesystem":
		key := cfg.SigningKey
		if key == "" {
			// les URLs émises ne survivent pas au redémarrage
			key = utils.RandomHex(32)
		}
		return NewFileSystemStore(utils.ResolvePath(defaultString(cfg.BaseDir, "./artifacts")), cfg.PublicBaseURL, key)
	}
	return nil, fmt.Errorf("unknown artifact provider %q", cfg.Provider)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

func contentDisposition(downloadName string) string {
	return fmt.Sprintf("attachment; filename=\"%s\"", strings.ReplaceAll(downloadName, "\"", ""))
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
