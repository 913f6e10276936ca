package utils

import (
	"context"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
)

var mutex sync.Mutex

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id string) error {
	key := GetTypeName[T]() + ":" + id
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id string) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + id
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// NextSequence returns the next value of a named counter. Redis is the fast
// path; when the counter is fresh (INCR returned 1) or Redis is down, seed is
// called to recover the current maximum from the database. Callers still have
// to handle duplicate numbers at insert time, this is an optimization only.
func NextSequence(ctx context.Context, name string, seed func(context.Context) (int64, error)) (int64, error) {
	mutex.Lock()
	defer mutex.Unlock()

	cacheKey := strings.ToLower(name) + "_seq"

	seqNo, err := config.GetRedisCounter(ctx, cacheKey)
	if err != nil {
		return 0, err
	}
	// counter missing or never initialized, recover from db
	if seqNo <= 1 {
		dbSeq, err := seed(ctx)
		if err != nil {
			return 0, err
		}
		seqNo = dbSeq + 1
		if err := config.SetRedisValue(cacheKey, strconv.FormatInt(seqNo, 10), 0); err != nil {
			return 0, err
		}
	}
	return seqNo, nil
}

// ResetSequence drops a named counter so the next NextSequence call reseeds
// it from the database maximum. A counter restored behind the stored numbers
// would otherwise step one INCR per collision until it caught up.
func ResetSequence(name string) error {
	mutex.Lock()
	defer mutex.Unlock()
	return config.RemoveRedisKey(strings.ToLower(name) + "_seq")
}
