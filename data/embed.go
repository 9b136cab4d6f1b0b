package data

import (
	_ "embed"
)

//go:embed initdb/mysql/002-ddl-databases.sql
var InitdbMySQLDatabases string

//go:embed initdb/mysql/003-ddl-privileges.sql
var InitdbMySQLPrivileges string
