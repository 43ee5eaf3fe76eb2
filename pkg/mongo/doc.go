// Package mongo manages the MongoDB connection backing subscription
// records and the audit log.
//
// Connection settings come from the environment (see [Config]); Connect
// retries transient failures so a briefly unreachable replica set during
// deploys does not take the process down with it.
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store := subscription.NewMongoStore(db)
package mongo
