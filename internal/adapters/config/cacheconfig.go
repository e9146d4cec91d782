package config

// CacheConfigFileName is the optional cache-configuration file's name,
// searched for upward the same way nozem.json is.
const CacheConfigFileName = "nozem-cache.json"

// CacheConfig is the resolved form of nozem-cache.json: where the local
// tier stores its tarballs, and (optionally) which bucket the remote tier
// should target. CacheBucket is nil when no remote tier is configured.
type CacheConfig struct {
	CacheDir    string
	CacheBucket *CacheBucket
}

// CacheBucket names a remote object-store bucket. Nozem never constructs
// the store client itself (spec.md §1 keeps the backend external); this is
// just the addressing information a wiring layer hands to whichever
// ports.ObjectStore implementation it constructs.
type CacheBucket struct {
	BucketName  string
	Region      string
	ProfileName string
}

// LoadCacheConfig searches dir and its ancestors for nozem-cache.json and
// returns the resolved config. The second return reports whether the file
// was found; a missing file is not an error, matching its "optional" status
// in spec.md §6.
func LoadCacheConfig(dir string) (CacheConfig, bool, error) {
	path, err := findUpward(dir, CacheConfigFileName)
	if err != nil {
		return CacheConfig{}, false, nil //nolint:nilerr // a missing optional file is not a load error
	}

	var dto cacheConfigDTO
	if err := readAndUnmarshalJSON(path, &dto); err != nil {
		return CacheConfig{}, false, err
	}

	cfg := CacheConfig{CacheDir: dto.CacheDir}
	if dto.CacheBucket != nil {
		cfg.CacheBucket = &CacheBucket{
			BucketName:  dto.CacheBucket.BucketName,
			Region:      dto.CacheBucket.Region,
			ProfileName: dto.CacheBucket.ProfileName,
		}
	}
	return cfg, true, nil
}
