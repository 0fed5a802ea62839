package constants

const Version = "v0.2.1"
