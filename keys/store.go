package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps payer seeds on the local filesystem.
//
// Layout: <Directory>/<identifier>/root.key and
// <Directory>/<identifier>/roles/<role>.key. Each file holds one line,
// "<algorithm>:<hex seed>".
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	Algorithm  string
	Roles      []string
}

// SignerRef names a signer the way command lines and config files do.
// The first non-empty source wins: SeedHex, KeyFile, then Name/Role.
type SignerRef struct {
	Algorithm string
	HashAlg   string
	SeedHex   string
	KeyFile   string
	Name      string
	Role      string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "w3slot", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) roleKeyPath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".key")
}

func checkName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(identifier string) error { return checkName("identifier", identifier) }

func CheckRole(role string) error { return checkName("role", role) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

func saveSeed(filePath, alg string, seed []byte, overwrite bool) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(alg + ":" + hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

// loadSeed reads a key file. Bare hex lines are ed25519 seeds.
func loadSeed(filePath string) (alg string, seed []byte, err error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, err
	}
	line := strings.TrimSpace(string(data))
	alg = AlgEd25519
	if i := strings.IndexByte(line, ':'); i >= 0 {
		alg, line = line[:i], line[i+1:]
	}
	seed, err = ParseSeedHex(line)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return alg, seed, nil
}

// InitializeRootKey stores seed as the root key of identifier and returns
// the signer for it.
func (ks *KeyStore) InitializeRootKey(identifier, alg string, seed []byte, overwrite bool) (Signer, string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return nil, "", err
	}
	if alg == "" {
		alg = AlgEd25519
	}
	signer, err := NewSigner(alg, seed, "")
	if err != nil {
		return nil, "", err
	}
	filePath := ks.rootKeyPath(identifier)
	if err := saveSeed(filePath, alg, seed, overwrite); err != nil {
		return nil, "", err
	}
	return signer, filePath, nil
}

// DeriveRole derives and stores a role key under identifier, using the
// root key's algorithm.
func (ks *KeyStore) DeriveRole(identifier, role string, overwrite bool) (Signer, string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return nil, "", err
	}
	alg, rootSeed, err := loadSeed(ks.rootKeyPath(identifier))
	if err != nil {
		return nil, "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return nil, "", err
	}
	signer, err := NewSigner(alg, roleSeed, "")
	if err != nil {
		return nil, "", err
	}
	filePath := ks.roleKeyPath(identifier, role)
	if err := saveSeed(filePath, alg, roleSeed, overwrite); err != nil {
		return nil, "", err
	}
	return signer, filePath, nil
}

// LoadSigner resolves ref into a Signer.
func (ks *KeyStore) LoadSigner(ref SignerRef) (Signer, error) {
	switch {
	case ref.SeedHex != "":
		seed, err := ParseSeedHex(ref.SeedHex)
		if err != nil {
			return nil, err
		}
		return NewSigner(ref.Algorithm, seed, ref.HashAlg)
	case ref.KeyFile != "":
		return signerFromFile(ref.KeyFile, ref)
	case ref.Name != "":
		if err := CheckKeyName(ref.Name); err != nil {
			return nil, err
		}
		if ref.Role == "" {
			return signerFromFile(ks.rootKeyPath(ref.Name), ref)
		}
		if err := CheckRole(ref.Role); err != nil {
			return nil, err
		}
		return signerFromFile(ks.roleKeyPath(ref.Name, ref.Role), ref)
	default:
		return nil, errors.New("no signer provided")
	}
}

func signerFromFile(path string, ref SignerRef) (Signer, error) {
	alg, seed, err := loadSeed(path)
	if err != nil {
		return nil, err
	}
	if ref.Algorithm != "" && ref.Algorithm != alg {
		return nil, fmt.Errorf("%s holds a %s key, not %s", path, alg, ref.Algorithm)
	}
	return NewSigner(alg, seed, ref.HashAlg)
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		alg, _, err := loadSeed(ks.rootKeyPath(identifier))
		if err != nil {
			continue
		}
		var roles []string
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, identifier, "roles"))
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if !roleEntry.IsDir() && strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Identifier: identifier, Algorithm: alg, Roles: roles})
	}
	return result, nil
}
