// Package main: balance oracle relayer.
//
// The relayer needs a websocket (or IPC) node endpoint since it subscribes to the oracle contract events. The database
// and the message broker are optional: without them outcomes are only logged.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forkedfinance/relayer/lib/balance"
	"github.com/forkedfinance/relayer/lib/config"
	"github.com/forkedfinance/relayer/lib/msg"
	"github.com/forkedfinance/relayer/lib/msg/amqp"
	"github.com/forkedfinance/relayer/lib/oracle"
	"github.com/forkedfinance/relayer/lib/store"
	"github.com/forkedfinance/relayer/lib/store/db"
	"github.com/forkedfinance/relayer/relayer"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		log.Fatalf("Error reading configuration: %v", err)
	}

	if err = conf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Configuration: node:%s oracle:%s api:%s poll:%dms chunk:%d retries:%d policy:%s port:%s", conf.Node,
		conf.OracleAddress, conf.APIURL, conf.Poll, conf.Chunk, conf.Retries, conf.Policy, conf.Port)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect to the oracle contract
	o, err := oracle.Dial(ctx, conf)
	if err != nil {
		log.Fatalf("Error connecting to the oracle: %v", err)
	}
	defer o.Close()

	// connect to database
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}

		log.Printf("Connected to %s database", conf.DBType)

		defer func() {
			log.Printf("Closing database: %v", db.Close(conf.DBType, dbConn))
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		var a *amqp.Amqp
		if a, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if a, err = amqp.New(conf.MbConn); err != nil {
				log.Fatalf("Error connecting to message broker: %v", err)
			}
		}

		if err = a.Setup(nil); err != nil {
			log.Fatalf("Error setting up message broker: %v", err)
		}

		mb = a

		defer func() {
			log.Printf("Closing message broker: %v", a.Close())
		}()
	case "":
	default:
		log.Printf("Unknown message broker type: %s", conf.MbType)
	}

	lookup := balance.New(conf.APIURL, time.Duration(conf.APITimeout)*time.Millisecond, conf.APIRate)

	r, err := relayer.New(conf, o, lookup, o, dbConn, mb)
	if err != nil {
		log.Fatalf("Error creating relayer: %v", err)
	}

	if err = r.Run(ctx); err != nil {
		log.Printf("Relayer stopped: %v", err)
	}

	log.Println("Relayer stopped")
}
