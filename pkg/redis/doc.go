// Package redis connects to the Redis instance that backs the deferred
// task queue.
//
// Connect retries until the server answers a ping, so the worker process
// can start before Redis finishes coming up:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	storage := deferred.NewRedisStorage(client)
package redis
