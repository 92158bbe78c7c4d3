package memc_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pior/memc"
)

func Example() {
	client, err := memc.New("cache-1:11211", "cache-2:11211")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	err = client.Set(ctx, "greeting", []byte("hello"), memc.Options{Expire: 60})
	if err != nil {
		log.Printf("Set failed: %v", err)
		return
	}

	value, err := client.Get(ctx, "greeting")
	if memc.IsNotFound(err) {
		fmt.Println("not found")
		return
	}
	if err != nil {
		log.Printf("Get failed: %v", err)
		return
	}
	fmt.Printf("Got value: %s\n", value)
}

func Example_compareAndSwap() {
	client, err := memc.New("localhost:11211")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	for {
		item, err := client.RawGets(ctx, "counter")
		if err != nil {
			log.Printf("Gets failed: %v", err)
			return
		}

		next := append(item.Value, '!')
		err = client.CompareAndSwap(ctx, "counter", next, item.CAS, memc.Options{})
		if memc.IsNotStored(err) {
			continue // modified concurrently, retry
		}
		if err != nil {
			log.Printf("CAS failed: %v", err)
		}
		return
	}
}

func ExampleNewClient() {
	addrs, err := memc.ParseAddresses("cache-1", "cache-2:11212")
	if err != nil {
		log.Fatal(err)
	}

	client, err := memc.NewClient(addrs, memc.Config{
		PoolSize:          10,
		Timeout:           500 * time.Millisecond,
		MaxAttempts:       3,
		AcquireTimeout:    100 * time.Millisecond,
		Pool:              memc.NewChannelPool,
		NewCircuitBreaker: memc.NewCircuitBreakerConfig(3, time.Minute, 10*time.Second),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	stats := client.PoolStats()
	fmt.Printf("Pool: %d clients\n", stats.TotalClients)
}

func ExampleNewCluster() {
	cluster, err := memc.NewCluster([][]memc.Address{
		{{Host: "cache-a1", Port: 11211}, {Host: "cache-a2", Port: 11211}},
		{{Host: "cache-b1", Port: 11211}, {Host: "cache-b2", Port: 11211}},
	}, memc.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer cluster.Close()

	values, err := cluster.GetMulti(context.Background(), []string{"user:1", "user:2", "user:3"})
	if err != nil {
		log.Printf("GetMulti failed: %v", err)
		return
	}
	for _, value := range values {
		fmt.Printf("%q\n", value)
	}
}
