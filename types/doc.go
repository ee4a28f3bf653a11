// Package types contains the shared data model of the assistant:
// the parameter schema descriptors used to build validating tool
// wrappers from remote command catalogs, and the structured error
// taxonomy shared by the MCP client, the agents, and the workflow.
package types
