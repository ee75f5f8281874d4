// Package redis connects the session backend to a Redis server.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	backend := session.NewRedisBackend(client, sessCfg.KeyPrefix)
//
// Connect retries until the server answers a PING or the attempts run
// out. Healthcheck adapts a client to the readiness probe of the server.
package redis
