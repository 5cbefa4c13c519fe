package cache

// CompositeKey joins a namespace and a key into the local tier key.
func CompositeKey(namespace, key string) string {
	return namespace + ":" + key
}

// UpdateLocal overwrites key only when it is already cached and reports whether it did.
func UpdateLocal[K comparable, V any](c LocalCache[K, V], key K, value V) bool {
	if _, found := c.Get(key); !found {
		return false
	}
	return c.Set(key, value)
}

// DeleteLocal deletes a value from local cache.
func DeleteLocal[K comparable, V any](c LocalCache[K, V], key K) {
	c.Delete(key)
}
