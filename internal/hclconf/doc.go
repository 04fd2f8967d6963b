// Package hclconf provides the concrete HCL implementation of the
// workflow-file loader. It parses step and group blocks, preserves
// parameter declaration order, and binds each step's run expression to an
// executable body that evaluates it per expanded node.
package hclconf
