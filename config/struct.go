package config

import "time"

type Config struct {
	// General configuration
	Env string `yaml:"env" mapstructure:"env" validate:"required"`
	Log Log    `yaml:"log" mapstructure:"log" validate:"required"`
	App App    `yaml:"app" mapstructure:"app" validate:"required"`

	// Infrastructure components
	Database     Database     `yaml:"database" mapstructure:"database" validate:"required"`
	Segmentstore Segmentstore `yaml:"segmentstore" mapstructure:"segmentstore" validate:"required"`
	Accounting   Accounting   `yaml:"accounting" mapstructure:"accounting" validate:"required"`
	Faults       Faults       `yaml:"faults" mapstructure:"faults"`
}

type App struct {
	Name         string        `yaml:"name" mapstructure:"name" validate:"required"`
	ReaderListen string        `yaml:"readerListen" mapstructure:"readerListen" validate:"required"`
	WriterListen string        `yaml:"writerListen" mapstructure:"writerListen" validate:"required"`
	ShardID      int64         `yaml:"shardId" mapstructure:"shardId" validate:"gte=0"`
	IDKey        string        `yaml:"idKey" mapstructure:"idKey" validate:"required,hexadecimal,len=32"`
	IDHmacKey    string        `yaml:"idHmacKey" mapstructure:"idHmacKey" validate:"required,hexadecimal"`
	PasswordKey  string        `yaml:"passwordKey" mapstructure:"passwordKey" validate:"required,hexadecimal,len=64"`
	DepTimeout   time.Duration `yaml:"depTimeout" mapstructure:"depTimeout" validate:"required,gte=1s"`
}

type Log struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format    string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json text"`
	AddSource bool   `yaml:"addSource" mapstructure:"addSource"`
}

type Database struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

type Segmentstore struct {
	Type        string            `yaml:"type" mapstructure:"type" validate:"required,oneof=local storj"`
	SegmentSize int64             `yaml:"segmentSize" mapstructure:"segmentSize" validate:"required,gte=1024"`
	Local       LocalSegmentstore `yaml:"local" mapstructure:"local"`
	Storj       StorjSegmentstore `yaml:"storj" mapstructure:"storj"`
}

type LocalSegmentstore struct {
	Root string `yaml:"root" mapstructure:"root"`
}

type StorjSegmentstore struct {
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
	AccessGrant string `yaml:"accessGrant" mapstructure:"accessGrant"`
}

type Accounting struct {
	BaseURL string `yaml:"baseUrl" mapstructure:"baseUrl" validate:"required,url"`
}

type Faults struct {
	BaseURL string `yaml:"baseUrl" mapstructure:"baseUrl" validate:"omitempty,url"`
}
