// Package config provides helper functionality to read the relayer configuration from JSON config files, a .env file
// or OS ENV variables. The default configuration is overridden, in order, by:
//
// - a valid JSON config file (see cmd/conf.json for a sample),
//
// - a .env file in the working directory (only sets variables not already present in the environment) and then by
//
// - OS ENV variables: prefixed with RELAYER_ (ie. RELAYER_NODE, RELAYER_ORACLEADDRESS, ...). Numeric variables must
// be valid base-10 integers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Retry exhaustion policies.
const (
	PolicyDrop = "drop" // give up without writing
	PolicyZero = "zero" // write a zero balance once
)

// Default configuration variables
var (
	NodeDefault          = "ws://localhost:8546"
	ChainIDDefault int64 = 0 // 0 means ask the node
	APIURLDefault        = "https://server.forkedfinance.xyz"
	APITimeoutDefault    = 10000 // ms
	APIRateDefault       = 0.0   // requests per second, 0 is unlimited
	PollDefault          = 2000  // ms
	ChunkDefault         = 3
	RetriesDefault       = 5
	BackoffBaseDefault   = 200  // ms
	BackoffMaxDefault    = 5000 // ms
	PolicyDefault        = PolicyDrop
	QueueCapDefault      = 10000
	DedupeDefault        = 4096
	WriteTimeoutDefault  = 30000 // ms
	PortDefault          = "4000"
	DBTypeDefault        = ""
	DBConnDefault        = ""
	MbTypeDefault        = ""
	MbConnDefault        = ""
)

// Errors returned by Validate.
var (
	ErrNoOracle     = errors.New("oracle contract address is required")
	ErrNoCredential = errors.New("a private key or an HD seed is required")
	ErrBadPolicy    = errors.New("exhaustion policy has to be either drop or zero")
	ErrNotPositive  = errors.New("value has to be greater than zero")
)

// ServiceConfig contains the required fields for the relayer service: chain connection and signing credential, the
// balance API, drain and retry tuning, the liveness port and the optional database and message broker.
type ServiceConfig struct {
	Node          string  `json:"node"`
	ChainID       int64   `json:"chainId"`
	OracleAddress string  `json:"oracleAddress"`
	CallerAddress string  `json:"callerAddress"`
	ABIFile       string  `json:"abiFile"`
	PrivateKey    string  `json:"privateKey"`
	HDSeed        string  `json:"hdseed"`
	HDWallet      uint32  `json:"hdwallet"`
	HDIndex       uint32  `json:"hdindex"`
	WaitMined     bool    `json:"waitMined"`
	WriteTimeout  int     `json:"writeTimeout"`
	APIURL        string  `json:"apiUrl"`
	APITimeout    int     `json:"apiTimeout"`
	APIRate       float64 `json:"apiRate"`
	Poll          int     `json:"poll"`
	Chunk         int     `json:"chunk"`
	Retries       int     `json:"retries"`
	BackoffBase   int     `json:"backoffBase"`
	BackoffMax    int     `json:"backoffMax"`
	Policy        string  `json:"policy"`
	QueueCap      int     `json:"queueCap"`
	Dedupe        int     `json:"dedupe"`
	Port          string  `json:"port"`
	DBType        string  `json:"dbtype"`
	DBConn        string  `json:"dbconn"`
	MbType        string  `json:"mbtype"`
	MbConn        string  `json:"mbconn"`
}

// Default returns a ServiceConfig loaded with the default values.
func Default() ServiceConfig {
	return ServiceConfig{
		Node:         NodeDefault,
		ChainID:      ChainIDDefault,
		WriteTimeout: WriteTimeoutDefault,
		APIURL:       APIURLDefault,
		APITimeout:   APITimeoutDefault,
		APIRate:      APIRateDefault,
		Poll:         PollDefault,
		Chunk:        ChunkDefault,
		Retries:      RetriesDefault,
		BackoffBase:  BackoffBaseDefault,
		BackoffMax:   BackoffMaxDefault,
		Policy:       PolicyDefault,
		QueueCap:     QueueCapDefault,
		Dedupe:       DedupeDefault,
		Port:         PortDefault,
		DBType:       DBTypeDefault,
		DBConn:       DBConnDefault,
		MbType:       MbTypeDefault,
		MbConn:       MbConnDefault,
	}
}

// ExtractConfiguration reads from the given JSON filename, the .env file and the environment and returns the
// ServiceConfig or an error otherwise. The returned configuration is not validated.
func ExtractConfiguration(filename string) (ServiceConfig, error) {
	conf := Default()
	// read from config file first
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			log.Println("Configuration file not found.")

			return conf, err
		}
		defer file.Close()

		if err = json.NewDecoder(file).Decode(&conf); err != nil {
			return conf, err
		}
	}
	// a missing .env file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error reading .env file: %v", err)
	}
	// then override config values with OS ENV variables
	if err := conf.fromEnv(); err != nil {
		return conf, err
	}

	return conf, nil
}

func (c *ServiceConfig) fromEnv() error {
	strs := map[string]*string{
		"RELAYER_NODE":          &c.Node,
		"RELAYER_ORACLEADDRESS": &c.OracleAddress,
		"RELAYER_CALLERADDRESS": &c.CallerAddress,
		"RELAYER_ABIFILE":       &c.ABIFile,
		"RELAYER_PRIVATEKEY":    &c.PrivateKey,
		"RELAYER_HDSEED":        &c.HDSeed,
		"RELAYER_APIURL":        &c.APIURL,
		"RELAYER_POLICY":        &c.Policy,
		"RELAYER_PORT":          &c.Port,
		"RELAYER_DBTYPE":        &c.DBType,
		"RELAYER_DBCONN":        &c.DBConn,
		"RELAYER_MBTYPE":        &c.MbType,
		"RELAYER_MBCONN":        &c.MbConn,
	}
	for k, p := range strs {
		if tmp := os.Getenv(k); tmp != "" {
			*p = tmp
		}
	}

	ints := map[string]*int{
		"RELAYER_WRITETIMEOUT": &c.WriteTimeout,
		"RELAYER_APITIMEOUT":   &c.APITimeout,
		"RELAYER_POLL":         &c.Poll,
		"RELAYER_CHUNK":        &c.Chunk,
		"RELAYER_RETRIES":      &c.Retries,
		"RELAYER_BACKOFFBASE":  &c.BackoffBase,
		"RELAYER_BACKOFFMAX":   &c.BackoffMax,
		"RELAYER_QUEUECAP":     &c.QueueCap,
		"RELAYER_DEDUPE":       &c.Dedupe,
	}
	for k, p := range ints {
		if tmp := os.Getenv(k); tmp != "" {
			v, err := strconv.Atoi(tmp)
			if err != nil {
				return fmt.Errorf("config: %s: %w", k, err)
			}

			*p = v
		}
	}

	if tmp := os.Getenv("RELAYER_CHAINID"); tmp != "" {
		v, err := strconv.ParseInt(tmp, 10, 64)
		if err != nil {
			return fmt.Errorf("config: RELAYER_CHAINID: %w", err)
		}

		c.ChainID = v
	}

	if tmp := os.Getenv("RELAYER_APIRATE"); tmp != "" {
		v, err := strconv.ParseFloat(tmp, 64)
		if err != nil {
			return fmt.Errorf("config: RELAYER_APIRATE: %w", err)
		}

		c.APIRate = v
	}

	for k, p := range map[string]*uint32{"RELAYER_HDWALLET": &c.HDWallet, "RELAYER_HDINDEX": &c.HDIndex} {
		if tmp := os.Getenv(k); tmp != "" {
			v, err := strconv.ParseUint(tmp, 10, 32)
			if err != nil {
				return fmt.Errorf("config: %s: %w", k, err)
			}

			*p = uint32(v)
		}
	}

	if tmp := os.Getenv("RELAYER_WAITMINED"); tmp != "" {
		v, err := strconv.ParseBool(tmp)
		if err != nil {
			return fmt.Errorf("config: RELAYER_WAITMINED: %w", err)
		}

		c.WaitMined = v
	}

	return nil
}

// Validate checks the required fields are present and the numeric tuning values are usable.
func (c ServiceConfig) Validate() error {
	if c.OracleAddress == "" {
		return ErrNoOracle
	}

	if c.PrivateKey == "" && c.HDSeed == "" {
		return ErrNoCredential
	}

	if c.Policy != PolicyDrop && c.Policy != PolicyZero {
		return fmt.Errorf("%w: %q", ErrBadPolicy, c.Policy)
	}

	for name, v := range map[string]int{
		"poll": c.Poll, "chunk": c.Chunk, "retries": c.Retries, "queueCap": c.QueueCap,
		"apiTimeout": c.APITimeout, "writeTimeout": c.WriteTimeout,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s: %w", name, ErrNotPositive)
		}
	}

	return nil
}
