package badger

const embeddingPrefix = "emb:"

func makeEmbeddingKey(key string) []byte {
	buf := make([]byte, 0, len(embeddingPrefix)+len(key))
	buf = append(buf, embeddingPrefix...)
	return append(buf, key...)
}
