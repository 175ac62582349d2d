package journey

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/raywall/fast-service-stubber/pkg/domain"
)

const (
	// ManifestFile é o nome do manifesto dentro do diretório da jornada.
	ManifestFile = "journey.json"
	// DefaultExtension é usada quando o content-type é ausente ou desconhecido.
	DefaultExtension = "rec"
)

// Sobrescritas aplicadas antes da tabela do mimetype.
var extensionOverrides = map[string]string{
	"text/xml":                 "xml",
	"application/xml":          "xml",
	"application/json":         "json",
	"text/plain":               "txt",
	"application/octet-stream": "bin",
}

// Sufixos estruturados (RFC 6839), ex: application/hal+json.
var suffixExtensions = map[string]string{
	"+json": "json",
	"+xml":  "xml",
}

// Store resolve caminhos e faz o I/O das jornadas em disco.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// ValidateName rejeita nomes que escapariam do diretório raiz.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return domain.New(domain.KindInvalidJourneyName, "invalid journey name: %q", name)
	}
	return nil
}

func (s *Store) JourneyDir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Store) ManifestPath(name string) string {
	return filepath.Join(s.root, name, ManifestFile)
}

// CreateJourneyDir cria o diretório da jornada. Se ele já existir nada é
// alterado e o erro é JourneyAlreadyExists.
func (s *Store) CreateJourneyDir(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot create journey root %s", s.root)
	}
	err := os.Mkdir(s.JourneyDir(name), 0o755)
	switch {
	case errors.Is(err, fs.ErrExist):
		return domain.New(domain.KindJourneyAlreadyExists, "journey %s already exists", name)
	case err != nil:
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot create journey %s", name)
	}
	return nil
}

// ExtensionFor converte um content-type na extensão do artefato, sem o ponto.
func ExtensionFor(contentType string) string {
	if contentType == "" {
		return DefaultExtension
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultExtension
	}
	if ext, ok := extensionOverrides[mediaType]; ok {
		return ext
	}
	for suffix, ext := range suffixExtensions {
		if strings.HasSuffix(mediaType, suffix) {
			return ext
		}
	}
	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	// tabela do sistema + tabela embutida do pacote mime
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return DefaultExtension
}

// HashFragment devolve os 8 primeiros caracteres hex do md5 do padrão.
func HashFragment(pattern string) string {
	sum := md5.Sum([]byte(pattern))
	return hex.EncodeToString(sum[:])[:8]
}

// ArtifactPath monta o caminho do artefato relativo ao diretório da jornada:
// {backend}/{index}-{hash}.{ext}. Usa "/" independente do sistema.
func ArtifactPath(backendName string, index int, pattern, ext string) string {
	return path.Join(backendName, strconv.Itoa(index)+"-"+HashFragment(pattern)+"."+ext)
}

func (s *Store) artifactFile(journey, rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("artifact path escapes journey directory: %s", rel)
	}
	return filepath.Join(s.JourneyDir(journey), local), nil
}

// WriteArtifact cria os diretórios necessários e grava o corpo.
func (s *Store) WriteArtifact(journey, rel string, body []byte) error {
	file, err := s.artifactFile(journey, rel)
	if err != nil {
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot write artifact")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot create directory for %s", rel)
	}
	if err := os.WriteFile(file, body, 0o644); err != nil {
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot write artifact %s", rel)
	}
	return nil
}

func (s *Store) ReadArtifact(journey, rel string) ([]byte, error) {
	file, err := s.artifactFile(journey, rel)
	if err != nil {
		return nil, domain.Wrap(domain.KindArtifactReadFailed, err, "cannot read artifact")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, domain.Wrap(domain.KindArtifactReadFailed, err, "cannot read artifact %s", rel)
	}
	return data, nil
}

// WriteManifest reescreve journey.json por inteiro. Não há rename atômico.
func (s *Store) WriteManifest(journey string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot encode manifest for %s", journey)
	}
	if err := os.WriteFile(s.ManifestPath(journey), data, 0o644); err != nil {
		return domain.Wrap(domain.KindArtifactWriteFailed, err, "cannot write manifest for %s", journey)
	}
	return nil
}

// ReadManifest carrega journey.json. Nenhum arquivo é criado quando falta.
func (s *Store) ReadManifest(journey string) (*Manifest, error) {
	if err := ValidateName(journey); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.ManifestPath(journey))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.New(domain.KindJourneyNotFound, "journey %s not found", journey)
	case err != nil:
		return nil, domain.Wrap(domain.KindArtifactReadFailed, err, "cannot read manifest for %s", journey)
	}

	m := NewManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, domain.Wrap(domain.KindManifestCorrupt, err, "manifest for journey %s is corrupt", journey)
	}
	return m, nil
}
