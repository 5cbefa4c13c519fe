package thumb

import redisV9 "github.com/redis/go-redis/v9"

// KEYS[1] actor hash, KEYS[2] slice bucket (batch mode only).
// ARGV[1] item field, ARGV[2] liked value, ARGV[3] "actor:item".
//
// The bucket holds the net change of the pair within the slice. Likes and unlikes of
// one pair alternate, so the code stays in -1..1 and 0 means the slice changed nothing.
var likeScript = redisV9.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if KEYS[2] then
	redis.call('HINCRBY', KEYS[2], ARGV[3], 1)
end
return 1
`)

var unlikeScript = redisV9.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
if KEYS[2] then
	redis.call('HINCRBY', KEYS[2], ARGV[3], -1)
end
return 1
`)
