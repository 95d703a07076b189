package pipeline

import (
	"fmt"
)

// Pipeline applies the configured compress-then-encrypt transform on
// the way into the store and exactly reverses it on the way out:
// Decode(Encode(p)) == p for every payload and configuration.
//
// Encoded layout: [nonce][ciphertext] when encryption is on, raw
// (possibly compressed) bytes otherwise. The nonce length is fixed by
// the encryptor, so no framing header is needed.
type Pipeline struct {
	compressor Compressor
	encryptor  Encryptor
	key        []byte
}

// Config selects the transforms. The booleans mirror the backup
// configuration; algorithm names default to zstd and AES-GCM.
type Config struct {
	Compression     bool
	CompressionAlgo string
	Encryption      bool
	EncryptionAlgo  string
	Key             []byte
}

// New builds a pipeline from config. A missing key with encryption
// enabled is an error; a generated key would make old artifacts
// unreadable after restart.
func New(cfg Config) (*Pipeline, error) {
	compressionAlgo := CompressionNone
	if cfg.Compression {
		compressionAlgo = cfg.CompressionAlgo
		if compressionAlgo == "" || compressionAlgo == CompressionNone {
			compressionAlgo = CompressionZstd
		}
	}
	compressor, err := NewCompressor(compressionAlgo)
	if err != nil {
		return nil, err
	}

	encryptionAlgo := EncryptionNone
	if cfg.Encryption {
		encryptionAlgo = cfg.EncryptionAlgo
		if encryptionAlgo == "" || encryptionAlgo == EncryptionNone {
			encryptionAlgo = EncryptionAESGCM
		}
	}
	encryptor, err := NewEncryptor(encryptionAlgo)
	if err != nil {
		return nil, err
	}

	if cfg.Encryption && len(cfg.Key) != encryptor.KeySize() {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d",
			encryptor.KeySize(), len(cfg.Key))
	}

	return &Pipeline{
		compressor: compressor,
		encryptor:  encryptor,
		key:        cfg.Key,
	}, nil
}

// Encode applies compression then encryption.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	compressed, err := p.compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	ciphertext, nonce, err := p.encryptor.Encrypt(p.key, compressed)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	if len(nonce) == 0 {
		return ciphertext, nil
	}
	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Decode reverses Encode.
func (p *Pipeline) Decode(blob []byte) ([]byte, error) {
	nonceSize := p.encryptor.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("blob shorter than nonce: %d < %d", len(blob), nonceSize)
	}

	compressed, err := p.encryptor.Decrypt(p.key, blob[:nonceSize], blob[nonceSize:])
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	data, err := p.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return data, nil
}

// Extension returns the artifact filename extension reflecting the
// compression state.
func (p *Pipeline) Extension() string {
	switch p.compressor.Algorithm() {
	case CompressionZstd:
		return "zst"
	case CompressionSnappy:
		return "sz"
	default:
		return "bak"
	}
}
